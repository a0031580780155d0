package reservation

import (
	"fmt"

	"slotbot/internal/schedule"
)

// Message is the user-facing notification text for an outcome.
func Message(slot schedule.EligibleSlot, out Outcome, maxRetries int) string {
	where := fmt.Sprintf("%s at %s (%s)", slot.Facility, slot.StartingTime, slot.ActivityButton)
	switch out.Kind {
	case Success:
		return "✅ Successfully reserved a slot in " + where
	case NoAvailability:
		if out.NoMoreTimes {
			return "❌ No more available times in " + where
		}
		return "❌ No slots available in " + where
	case RetryExhausted:
		return fmt.Sprintf("❌ Failed to reserve slot in %s after %d retries", where, maxRetries)
	default:
		return fmt.Sprintf("❌ Failed to reserve a slot in %s, step %s: %v", where, out.Step, out.Err)
	}
}
