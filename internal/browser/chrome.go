package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"slotbot/pkg/logx"
)

type ChromeOptions struct {
	Headless bool
	ExecPath string
	// ElementTimeout bounds how long Find/FindAll wait for a match.
	ElementTimeout time.Duration
	// ActionTimeout bounds any single browser call.
	ActionTimeout time.Duration
	WindowWidth   int
	WindowHeight  int
	UserAgent     string
	Log           logx.Logger
}

// Chrome drives a local Chrome/Chromium over the DevTools protocol.
type Chrome struct {
	tab            context.Context
	cancelTab      context.CancelFunc
	cancelAlloc    context.CancelFunc
	elementTimeout time.Duration
	actionTimeout  time.Duration
	pollEvery      time.Duration
	log            logx.Logger
}

// NewChrome starts the browser and opens one tab. The browser lives until
// Close; ctx only bounds startup.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 5 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 1024
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	// detached from ctx so a cancelled startup context does not kill later calls
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	log := opts.Log
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug("chromedp", logx.String("msg", fmt.Sprintf(format, args...)))
		}),
	)

	c := &Chrome{
		tab:            tab,
		cancelTab:      cancelTab,
		cancelAlloc:    cancelAlloc,
		elementTimeout: opts.ElementTimeout,
		actionTimeout:  opts.ActionTimeout,
		pollEvery:      100 * time.Millisecond,
		log:            log,
	}
	// first Run launches the browser process
	if err := c.run(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	log.Info("browser started", logx.Bool("headless", opts.Headless))
	return c, nil
}

// run executes actions on the tab, bounded by the action timeout and ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	actx, cancel := context.WithTimeout(c.tab, c.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(actx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Find(ctx context.Context, sel Selector) (Element, error) {
	els, err := c.FindAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NotFound(sel)
	}
	return els[0], nil
}

func (c *Chrome) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	query, by := sel.CSS, chromedp.ByQueryAll
	if sel.XPath != "" {
		query, by = sel.XPath, chromedp.BySearch
	}

	deadline := time.Now().Add(c.elementTimeout)
	for {
		var nodes []*cdp.Node
		if err := c.run(ctx, chromedp.Nodes(query, &nodes, by, chromedp.AtLeast(0))); err != nil {
			return nil, fmt.Errorf("query %s: %w", sel, err)
		}
		if len(nodes) > 0 {
			out := make([]Element, 0, len(nodes))
			for _, n := range nodes {
				out = append(out, &chromeElement{c: c, id: n.NodeID})
			}
			return out, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (c *Chrome) Close() error {
	if c.cancelTab != nil {
		c.cancelTab()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	return nil
}

type chromeElement struct {
	c  *Chrome
	id cdp.NodeID
}

func (e *chromeElement) ids() []cdp.NodeID { return []cdp.NodeID{e.id} }

func (e *chromeElement) Click(ctx context.Context) error {
	return e.c.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.c.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Type(ctx context.Context, text string) error {
	return e.c.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := e.c.run(ctx, chromedp.AttributeValue(e.ids(), name, &val, &ok, chromedp.ByNodeID))
	return val, ok, err
}

// Visible treats an element without a layout box as hidden.
func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(e.id).Do(ctx)
		if err != nil {
			// no box model: display:none, detached, or type=hidden
			return nil
		}
		visible = box != nil && box.Width > 0 && box.Height > 0
		return nil
	}))
	return visible, err
}
