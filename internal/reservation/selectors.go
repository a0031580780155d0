package reservation

import (
	"strings"

	"slotbot/internal/browser"
	"slotbot/internal/schedule"
)

// Page elements of the booking site.
var (
	selGroupSize     = browser.CSS("#reservationCount")
	selNoTimesForm   = browser.XPath("//form[contains(@action,'NoAvailableTime')]")
	selButton        = browser.CSS(".mdc-button__ripple")
	selDateHeader    = browser.CSS(".header-text")
	selPhone         = browser.CSS("#telephone")
	selEmail         = browser.CSS("#email")
	selName          = browser.XPath("//input[starts-with(@id,'field')]")
	selRetry         = browser.XPath("//span[text()='Retry']")
	selCode          = browser.CSS("#code")
	selSummaryHeader = browser.XPath("//*[text()='Time and number of participants']")
)

func activitySelector(label string) browser.Selector {
	return browser.XPath("//div[text()=" + xpathLiteral(label) + "]")
}

// timeSelector matches the time control whose aria-label contains
// "<HH:MM:SS> <Weekday>".
func timeSelector(slot schedule.EligibleSlot) browser.Selector {
	return browser.CSS("[aria-label*='" + cssString(slot.Label()) + "']")
}

// xpathLiteral quotes s for XPath 1.0, which has no escape syntax.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
