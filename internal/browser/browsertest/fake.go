// Package browsertest provides an in-memory browser.Browser for tests.
package browsertest

import (
	"context"
	"strings"
	"sync"

	"slotbot/internal/browser"
)

// Fake is a scripted page: elements are registered per selector and tests
// mutate the page from OnClick hooks.
type Fake struct {
	mu       sync.Mutex
	elements map[string][]*Element
	calls    []string

	NavigateErr   error
	PNG           []byte
	ScreenshotErr error
	Closed        bool
}

func New() *Fake {
	return &Fake{elements: map[string][]*Element{}, PNG: []byte("\x89PNG fake")}
}

// Element is a fake DOM node.
type Element struct {
	f     *Fake
	sel   string
	Attrs map[string]string
	// Hidden makes Visible report false.
	Hidden   bool
	ClickErr error
	// OnClick runs after a successful click, without the page lock held.
	OnClick func()

	typed  strings.Builder
	clicks int
}

// Add registers el under sel, after any existing matches.
func (f *Fake) Add(sel browser.Selector, el *Element) *Element {
	if el == nil {
		el = &Element{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	el.f, el.sel = f, sel.String()
	f.elements[el.sel] = append(f.elements[el.sel], el)
	return el
}

// Remove drops every match of sel.
func (f *Fake) Remove(sel browser.Selector) {
	f.mu.Lock()
	delete(f.elements, sel.String())
	f.mu.Unlock()
}

// Calls returns the recorded actions, e.g. "navigate https://x" or
// "click css:#code".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record("navigate " + url)
	return f.NavigateErr
}

func (f *Fake) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	els, err := f.FindAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.NotFound(sel)
	}
	return els[0], nil
}

func (f *Fake) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.elements[sel.String()]
	out := make([]browser.Element, 0, len(src))
	for _, el := range src {
		out = append(out, el)
	}
	return out, nil
}

func (f *Fake) Screenshot(context.Context) ([]byte, error) {
	f.record("screenshot")
	if f.ScreenshotErr != nil {
		return nil, f.ScreenshotErr
	}
	return f.PNG, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.f.record("click " + e.sel)
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.f.mu.Lock()
	e.clicks++
	hook := e.OnClick
	e.f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Clear(context.Context) error {
	e.f.mu.Lock()
	e.typed.Reset()
	e.f.mu.Unlock()
	return nil
}

func (e *Element) Type(_ context.Context, text string) error {
	e.f.mu.Lock()
	e.typed.WriteString(text)
	e.f.mu.Unlock()
	return nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	return !e.Hidden, nil
}

// Text returns what was typed since the last Clear.
func (e *Element) Text() string {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	return e.typed.String()
}

func (e *Element) Clicks() int {
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	return e.clicks
}
