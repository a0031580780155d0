package reservation

import "fmt"

// Kind is the terminal result of one slot.
type Kind int

const (
	Success Kind = iota
	NoAvailability
	RetryExhausted
	Failure
)

var kindNames = [...]string{"success", "no_availability", "retry_exhausted", "failure"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every Kind in declaration order.
func Kinds() []Kind { return []Kind{Success, NoAvailability, RetryExhausted, Failure} }

// Step names the state the machine was in when it stopped.
type Step string

const (
	StepOpen           Step = "open"
	StepSelectActivity Step = "select_activity"
	StepGroupSize      Step = "group_size"
	StepPickDate       Step = "pick_date"
	StepPickTime       Step = "pick_time"
	StepFillForm       Step = "fill_form"
	StepRetry          Step = "retry"
	StepAwaitCode      Step = "await_code"
	StepSubmitCode     Step = "submit_code"
	StepFinalConfirm   Step = "final_confirm"
	StepDone           Step = "done"
)

type Outcome struct {
	Kind Kind
	Step Step
	// Err is set for Failure.
	Err error
	// Code is the confirmation code used, if one was received.
	Code string
	// Retries counts clicks on the site's Retry control.
	Retries int
	// NoMoreTimes is set when the site showed its "no available time" page
	// instead of the group size prompt.
	NoMoreTimes bool
}

func (o Outcome) String() string {
	if o.Kind == Failure && o.Err != nil {
		return fmt.Sprintf("%s at %s: %v", o.Kind, o.Step, o.Err)
	}
	return fmt.Sprintf("%s at %s", o.Kind, o.Step)
}
