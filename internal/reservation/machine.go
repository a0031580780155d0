// Package reservation drives one eligible slot through the booking site's
// form flow and reports the outcome.
//
// The flow is linear:
//
//	open -> select_activity -> group_size -> pick_date -> pick_time ->
//	fill_form -> retry -> await_code -> submit_code -> final_confirm
//
// group_size may end early with NoAvailability and retry with
// RetryExhausted. Any error ends the slot with Failure at the current step.
package reservation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/clock"
	"slotbot/internal/schedule"
	"slotbot/pkg/logx"
)

// CodeWaiter blocks until a confirmation code is available.
// *mailbox.Poller satisfies it.
type CodeWaiter interface {
	Await(ctx context.Context) (string, error)
}

// Contact is typed into the reservation form.
type Contact struct {
	Name  string
	Phone string
	Email string
}

// Machine runs the flow. One Machine is reused across slots; it keeps no
// per-slot state.
type Machine struct {
	Browser browser.Browser
	Input   browser.InputStrategy
	Codes   CodeWaiter
	Contact Contact

	GroupSize  int
	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration

	Clock  clock.Clock
	Jitter *clock.Jitter
	Log    logx.Logger
}

// slotRun is the per-slot scratch state.
type slotRun struct {
	slot    schedule.EligibleSlot
	log     logx.Logger
	code    string
	retries int
}

var flow = []struct {
	step Step
	fn   func(*Machine, context.Context, *slotRun) (*Outcome, error)
}{
	{StepOpen, (*Machine).open},
	{StepSelectActivity, (*Machine).selectActivity},
	{StepGroupSize, (*Machine).groupSize},
	{StepPickDate, (*Machine).pickDate},
	{StepPickTime, (*Machine).pickTime},
	{StepFillForm, (*Machine).fillForm},
	{StepRetry, (*Machine).retryLoop},
	{StepAwaitCode, (*Machine).awaitCode},
	{StepSubmitCode, (*Machine).submitCode},
	{StepFinalConfirm, (*Machine).finalConfirm},
}

// Reserve runs the flow for slot. It never returns an error: every condition
// is folded into the Outcome.
func (m *Machine) Reserve(ctx context.Context, slot schedule.EligibleSlot) Outcome {
	st := &slotRun{
		slot: slot,
		log: m.Log.With(
			logx.String("facility", slot.Facility),
			logx.String("starting_time", slot.StartingTime),
		),
	}
	st.log.Info("reserving slot", logx.String("activity", slot.ActivityButton))

	for _, s := range flow {
		st.log.Debug("step", logx.String("step", string(s.step)))
		term, err := s.fn(m, ctx, st)
		if err != nil {
			return Outcome{Kind: Failure, Step: s.step, Err: err, Code: st.code, Retries: st.retries}
		}
		if term != nil {
			term.Step = s.step
			term.Retries = st.retries
			return *term
		}
	}
	return Outcome{Kind: Success, Step: StepDone, Code: st.code, Retries: st.retries}
}

func (m *Machine) clock() clock.Clock {
	if m.Clock == nil {
		return clock.Real{}
	}
	return m.Clock
}

func (m *Machine) input() browser.InputStrategy {
	if m.Input == nil {
		return browser.Bulk{}
	}
	return m.Input
}

func (m *Machine) click(ctx context.Context, sel browser.Selector) error {
	el, err := m.Browser.Find(ctx, sel)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (m *Machine) fill(ctx context.Context, sel browser.Selector, text string) error {
	el, err := m.Browser.Find(ctx, sel)
	if err != nil {
		return err
	}
	if err := m.input().Fill(ctx, el, text); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func (m *Machine) open(ctx context.Context, st *slotRun) (*Outcome, error) {
	return nil, m.Browser.Navigate(ctx, st.slot.Link)
}

func (m *Machine) selectActivity(ctx context.Context, st *slotRun) (*Outcome, error) {
	return nil, m.click(ctx, activitySelector(st.slot.ActivityButton))
}

// groupSize fills the "how many people" prompt. A hidden or disabled prompt
// is the site's way of saying the slot is full.
func (m *Machine) groupSize(ctx context.Context, st *slotRun) (*Outcome, error) {
	els, err := m.Browser.FindAll(ctx, selGroupSize)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		noTimes, err := browser.Exists(ctx, m.Browser, selNoTimesForm)
		if err != nil {
			return nil, err
		}
		if noTimes {
			return &Outcome{Kind: NoAvailability, NoMoreTimes: true}, nil
		}
		return nil, browser.NotFound(selGroupSize)
	}

	input := els[0]
	disabled, err := inputDisabled(ctx, input)
	if err != nil {
		return nil, err
	}
	if disabled {
		return &Outcome{Kind: NoAvailability}, nil
	}

	n := m.GroupSize
	if n <= 0 {
		n = 1
	}
	if err := m.input().Fill(ctx, input, strconv.Itoa(n)); err != nil {
		return nil, fmt.Errorf("fill %s: %w", selGroupSize, err)
	}
	return nil, m.click(ctx, selButton)
}

func inputDisabled(ctx context.Context, el browser.Element) (bool, error) {
	typ, _, err := el.Attribute(ctx, "type")
	if err != nil {
		return false, err
	}
	if strings.EqualFold(typ, "hidden") {
		return true, nil
	}
	if _, ok, err := el.Attribute(ctx, "disabled"); err != nil || ok {
		return ok, err
	}
	visible, err := el.Visible(ctx)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (m *Machine) pickDate(ctx context.Context, _ *slotRun) (*Outcome, error) {
	el, err := browser.Last(ctx, m.Browser, selDateHeader)
	if err != nil {
		return nil, err
	}
	return nil, el.Click(ctx)
}

func (m *Machine) pickTime(ctx context.Context, st *slotRun) (*Outcome, error) {
	if err := m.input().BeforePick(ctx); err != nil {
		return nil, err
	}
	return nil, m.click(ctx, timeSelector(st.slot))
}

func (m *Machine) fillForm(ctx context.Context, _ *slotRun) (*Outcome, error) {
	fields := []struct {
		sel  browser.Selector
		text string
	}{
		{selPhone, m.Contact.Phone},
		{selEmail, m.Contact.Email},
		{selName, m.Contact.Name},
	}
	for _, f := range fields {
		if err := m.fill(ctx, f.sel, f.text); err != nil {
			return nil, err
		}
	}
	return nil, m.click(ctx, selButton)
}

// retryLoop clicks through the site's contention "Retry" prompt at most
// MaxRetries times. Seeing it once more after the last click ends the slot.
func (m *Machine) retryLoop(ctx context.Context, st *slotRun) (*Outcome, error) {
	for {
		shown, err := retryShown(ctx, m.Browser)
		if err != nil {
			return nil, err
		}
		if !shown {
			return nil, nil
		}
		if st.retries >= m.MaxRetries {
			st.log.Warn("retry limit reached", logx.Int("retries", st.retries))
			return &Outcome{Kind: RetryExhausted}, nil
		}
		st.retries++
		st.log.Warn("retry prompt shown", logx.Int("attempt", st.retries), logx.Int("max", m.MaxRetries))
		if err := m.click(ctx, selButton); err != nil {
			return nil, err
		}
		if err := m.clock().Sleep(ctx, m.backoff()); err != nil {
			return nil, err
		}
	}
}

func retryShown(ctx context.Context, b browser.Browser) (bool, error) {
	els, err := b.FindAll(ctx, selRetry)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		v, err := el.Visible(ctx)
		if err != nil {
			return false, err
		}
		if v {
			return true, nil
		}
	}
	return false, nil
}

func (m *Machine) backoff() time.Duration {
	lo, hi := m.BackoffMin, m.BackoffMax
	if lo <= 0 && hi <= 0 {
		lo, hi = time.Second, 3*time.Second
	}
	if m.Jitter == nil {
		return lo
	}
	return m.Jitter.Between(lo, hi)
}

func (m *Machine) awaitCode(ctx context.Context, st *slotRun) (*Outcome, error) {
	st.log.Info("waiting for confirmation code")
	code, err := m.Codes.Await(ctx)
	if err != nil {
		return nil, err
	}
	st.code = code
	st.log.Info("confirmation code received", logx.String("code", code))
	return nil, nil
}

func (m *Machine) submitCode(ctx context.Context, st *slotRun) (*Outcome, error) {
	if err := m.fill(ctx, selCode, st.code); err != nil {
		return nil, err
	}
	return nil, m.click(ctx, selButton)
}

// finalConfirm handles the summary page some flows show after the code.
func (m *Machine) finalConfirm(ctx context.Context, st *slotRun) (*Outcome, error) {
	present, err := browser.Exists(ctx, m.Browser, selSummaryHeader)
	if err != nil {
		return nil, err
	}
	if !present {
		st.log.Info("no final confirmation page")
		return nil, nil
	}
	el, err := browser.Last(ctx, m.Browser, selButton)
	if err != nil {
		return nil, err
	}
	return nil, el.Click(ctx)
}
