// Package browser is the page-automation capability used by the reservation
// flow, with a Chrome implementation on chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by Find when nothing matches before the
// element timeout.
var ErrElementNotFound = errors.New("element not found")

// Selector addresses elements by CSS or XPath. Exactly one is set.
type Selector struct {
	CSS   string
	XPath string
}

func CSS(s string) Selector   { return Selector{CSS: s} }
func XPath(s string) Selector { return Selector{XPath: s} }

func (s Selector) String() string {
	if s.XPath != "" {
		return "xpath:" + s.XPath
	}
	return "css:" + s.CSS
}

// Browser is one page session, reused across slots.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// Find returns the first match, waiting up to the element timeout.
	Find(ctx context.Context, sel Selector) (Element, error)
	// FindAll returns every match in document order, waiting up to the
	// element timeout for at least one. No match is an empty slice, not an error.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	// Type sends keystrokes to the element as-is.
	Type(ctx context.Context, text string) error
	// Attribute reports the value and whether the attribute exists.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
}

// NotFound wraps ErrElementNotFound with the selector.
func NotFound(sel Selector) error {
	return fmt.Errorf("%s: %w", sel, ErrElementNotFound)
}

// Last returns the final match of sel, or a not-found error.
func Last(ctx context.Context, b Browser, sel Selector) (Element, error) {
	els, err := b.FindAll(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, NotFound(sel)
	}
	return els[len(els)-1], nil
}

// Exists reports whether sel currently matches anything.
func Exists(ctx context.Context, b Browser, sel Selector) (bool, error) {
	els, err := b.FindAll(ctx, sel)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}
