package export

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"venuehours/internal/hours"
)

const productID = "-//venuehours//Operating Hours//EN"

// Custom properties carrying what a calendar app cannot show natively.
const (
	propClosed = ics.ComponentProperty("X-VENUEHOURS-CLOSED")
	propHours  = ics.ComponentProperty("X-VENUEHOURS-HOURS")
)

// Calendar renders override rules as all-day iCalendar events. Recurring
// rules carry an RRULE; rules with unusable dates are skipped.
func Calendar(name string, rules []hours.OverrideRule, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName(name)
	cal.SetXWRCalDesc("Opening hours and exceptions of " + name)

	for _, r := range rules {
		start, err := hours.ParseDate(r.DateStart)
		if err != nil {
			continue
		}
		end, ok := eventEnd(r, start)
		if !ok {
			continue
		}

		event := cal.AddEvent(fmt.Sprintf("override-%s@venuehours", r.ID))
		event.SetDtStampTime(stamp.UTC())
		event.SetAllDayStartAt(start)
		// DTEND of an all-day event is exclusive.
		event.SetAllDayEndAt(end.AddDate(0, 0, 1))
		event.SetSummary(r.Label())
		if r.Description != "" {
			event.SetDescription(r.Description)
		}
		event.SetProperty(ics.ComponentPropertyCategories, strings.ToUpper(string(r.Type)))

		if rrule := recurrenceRule(r); rrule != "" {
			event.AddRrule(rrule)
		}
		if r.IsClosed {
			event.SetProperty(propClosed, "TRUE")
		} else if r.Hours != nil {
			event.SetProperty(propHours, r.Hours.String())
		}
	}
	return cal.Serialize()
}

// eventEnd returns the last day of the rule's first occurrence. Weekly and
// monthly rules cover a single day; a yearly range whose end month-day
// precedes its start wraps into the next year.
func eventEnd(r hours.OverrideRule, start time.Time) (time.Time, bool) {
	switch r.RecurrenceOrNone() {
	case hours.RecurrenceWeekly, hours.RecurrenceMonthly:
		return start, true
	}

	end, err := hours.ParseDate(r.EndOrStart())
	if err != nil {
		return time.Time{}, false
	}
	if r.RecurrenceOrNone() == hours.RecurrenceYearly {
		end = time.Date(start.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
		if end.Before(start) {
			end = end.AddDate(1, 0, 0)
		}
	}
	return end, !end.Before(start)
}

func recurrenceRule(r hours.OverrideRule) string {
	var freq string
	switch r.RecurrenceOrNone() {
	case hours.RecurrenceYearly:
		freq = "YEARLY"
	case hours.RecurrenceWeekly:
		freq = "WEEKLY"
	case hours.RecurrenceMonthly:
		freq = "MONTHLY"
	default:
		return ""
	}

	rule := "FREQ=" + freq
	if until, err := hours.ParseDate(r.RecurrenceEndDate); err == nil {
		rule += ";UNTIL=" + until.Format("20060102")
	}
	return rule
}
