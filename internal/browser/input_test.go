package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/browser/browsertest"
	"slotbot/internal/clock"
)

func TestSelectorString(t *testing.T) {
	if got := browser.CSS("#code").String(); got != "css:#code" {
		t.Fatalf("CSS String = %q", got)
	}
	if got := browser.XPath("//span[text()='Retry']").String(); got != "xpath://span[text()='Retry']" {
		t.Fatalf("XPath String = %q", got)
	}
}

func TestBulkFill(t *testing.T) {
	f := browsertest.New()
	el := f.Add(browser.CSS("#email"), nil)
	_ = el.Type(context.Background(), "stale")

	if err := (browser.Bulk{}).Fill(context.Background(), el, "jane@example.com"); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got := el.Text(); got != "jane@example.com" {
		t.Fatalf("text = %q", got)
	}
}

func TestPacedFillTypesPerRuneWithJitter(t *testing.T) {
	f := browsertest.New()
	el := f.Add(browser.CSS("#telephone"), nil)
	fc := clock.NewFake(time.Now())
	p := browser.NewPaced(fc, clock.NewJitter(1), 0, 0, 0, 0)

	if err := p.Fill(context.Background(), el, "613é"); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if got := el.Text(); got != "613é" {
		t.Fatalf("text = %q", got)
	}
	sleeps := fc.Sleeps()
	if len(sleeps) != 4 {
		t.Fatalf("sleeps = %d, want one per rune", len(sleeps))
	}
	for _, d := range sleeps {
		if d < 10*time.Millisecond || d > 100*time.Millisecond {
			t.Fatalf("key delay %v outside 10ms..100ms", d)
		}
	}

	if err := p.BeforePick(context.Background()); err != nil {
		t.Fatalf("BeforePick: %v", err)
	}
	last := fc.Sleeps()[4]
	if last < 100*time.Millisecond || last > 900*time.Millisecond {
		t.Fatalf("pick delay %v outside 100ms..900ms", last)
	}
}

func TestPacedFillCancelled(t *testing.T) {
	f := browsertest.New()
	el := f.Add(browser.CSS("#email"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := browser.NewPaced(clock.NewFake(time.Now()), clock.NewJitter(1), 0, 0, 0, 0)
	if err := p.Fill(ctx, el, "abc"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fill err = %v, want context.Canceled", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"", "paced", "PACED"} {
		s, err := browser.ParseStrategy(name, nil)
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", name, err)
		}
		if _, ok := s.(*browser.Paced); !ok {
			t.Fatalf("ParseStrategy(%q) = %T, want *Paced", name, s)
		}
	}
	if s, err := browser.ParseStrategy("bulk", nil); err != nil || s != (browser.Bulk{}) {
		t.Fatalf("ParseStrategy(bulk) = %v, %v", s, err)
	}
	if _, err := browser.ParseStrategy("telepathy", nil); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}

func TestLastAndExists(t *testing.T) {
	ctx := context.Background()
	f := browsertest.New()
	sel := browser.CSS(".header-text")

	if ok, err := browser.Exists(ctx, f, sel); err != nil || ok {
		t.Fatalf("Exists on empty page = %v, %v", ok, err)
	}
	if _, err := browser.Last(ctx, f, sel); !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("Last err = %v, want ErrElementNotFound", err)
	}

	f.Add(sel, nil)
	second := f.Add(sel, nil)
	got, err := browser.Last(ctx, f, sel)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if got != browser.Element(second) {
		t.Fatal("Last did not return the final match")
	}
}
