package timeexpr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolver turns free-text availability statements ("tomorrow 3pm",
// "monday 10am", "in 2 hours") into absolute timestamps.
//
// Resolution is a prioritized rule chain: the first rule that matches wins.
// An unmatched string resolves to nothing; callers must treat that candidate
// as not-yet-due and leave the original text untouched for a human.
//
// All resolution happens in the reference time's location. The service is
// expected to run with a single fixed timezone; no per-candidate zones.
type Resolver struct {
	rules []Rule
}

// Rule is one pure resolution heuristic. It returns the resolved time and
// true on match, or the zero time and false to pass to the next rule.
type Rule func(text string, now time.Time) (time.Time, bool)

// NewResolver returns the default rule chain, highest priority first.
func NewResolver() *Resolver {
	return &Resolver{
		rules: []Rule{
			ruleCalendarDate,
			ruleTomorrow,
			ruleWeekday,
			ruleRelativeOffset,
		},
	}
}

// Resolve runs the rule chain. ok is false when no rule matched.
func (r *Resolver) Resolve(text string, now time.Time) (t time.Time, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, rule := range r.rules {
		if t, ok := rule(text, now); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// defaultHour is applied when a day-level expression carries no clock time.
const defaultHour = 10

var calendarLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3pm",
	"2006-01-02 3 pm",
	"2006-01-02",
	"Jan 2 2006 3:04pm",
	"Jan 2 2006 3pm",
	"Jan 2 2006 15:04",
	"Jan 2 2006",
	"Jan 2, 2006 3:04pm",
	"Jan 2, 2006 3pm",
	"Jan 2, 2006",
	"January 2 2006 3pm",
	"January 2, 2006 3pm",
	"January 2, 2006",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ruleCalendarDate handles well-formed calendar dates ("2026-02-20 14:00",
// "Feb 20 2026 3pm"). A parse that lands before year 2000 is treated as
// garbage rather than a real appointment.
func ruleCalendarDate(text string, now time.Time) (time.Time, bool) {
	normalized := normalizeMeridiem(text)
	for _, layout := range calendarLayouts {
		t, err := time.ParseInLocation(layout, normalized, now.Location())
		if err != nil {
			// retry case-insensitively for month names
			t, err = time.ParseInLocation(layout, titleCaseMonth(normalized), now.Location())
		}
		if err == nil && t.Year() > 2000 {
			return t, true
		}
	}
	return time.Time{}, false
}

// ruleTomorrow handles "tomorrow", optionally with an embedded clock time.
func ruleTomorrow(text string, now time.Time) (time.Time, bool) {
	if !containsWord(text, "tomorrow") {
		return time.Time{}, false
	}
	day := now.AddDate(0, 0, 1)
	return atClockTime(day, text), true
}

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"sunday", time.Sunday},
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
}

// ruleWeekday handles bare weekday names: the next occurrence strictly after
// now. "Monday" said on a Monday means next week's Monday. When the text
// names several weekdays, the one mentioned first wins, so the same text
// always resolves to the same day.
func ruleWeekday(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	firstIdx := -1
	var firstDay time.Weekday
	for _, w := range weekdayNames {
		idx := indexWord(lower, w.name)
		if idx < 0 {
			continue
		}
		if firstIdx < 0 || idx < firstIdx {
			firstIdx = idx
			firstDay = w.day
		}
	}
	if firstIdx < 0 {
		return time.Time{}, false
	}
	daysToAdd := int(firstDay) - int(now.Weekday())
	if daysToAdd <= 0 {
		daysToAdd += 7
	}
	day := now.AddDate(0, 0, daysToAdd)
	return atClockTime(day, text), true
}

var relativeOffsetRe = regexp.MustCompile(`(?i)\b(\d+)\s*(hour|minute|min|day)s?\b`)

// ruleRelativeOffset handles "in 2 hours", "30 minutes", "in 3 days".
func ruleRelativeOffset(text string, now time.Time) (time.Time, bool) {
	m := relativeOffsetRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch strings.ToLower(m[2]) {
	case "hour":
		return now.Add(time.Duration(n) * time.Hour), true
	case "minute", "min":
		return now.Add(time.Duration(n) * time.Minute), true
	case "day":
		return now.AddDate(0, 0, n), true
	}
	return time.Time{}, false
}

var clockTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)

// atClockTime applies an embedded clock time ("3pm", "10:30 am", "15") from
// text to the given day, defaulting to 10:00 when none is present.
// 12-hour normalization: pm and hour != 12 adds 12; am and hour == 12 is 0.
func atClockTime(day time.Time, text string) time.Time {
	hour, minute := defaultHour, 0
	if m := clockTimeRe.FindStringSubmatch(text); m != nil {
		h, err := strconv.Atoi(m[1])
		if err == nil && h >= 0 && h <= 23 {
			hour = h
			if m[2] != "" {
				if mm, err := strconv.Atoi(m[2]); err == nil && mm >= 0 && mm <= 59 {
					minute = mm
				}
			}
			switch strings.ToLower(m[3]) {
			case "pm":
				if hour != 12 {
					hour += 12
				}
			case "am":
				if hour == 12 {
					hour = 0
				}
			}
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func containsWord(text, word string) bool {
	return indexWord(strings.ToLower(text), word) >= 0
}

// indexWord returns the offset of the first whole-word occurrence of word in
// lower, or -1. lower must already be lowercased.
func indexWord(lower, word string) int {
	for from := 0; from < len(lower); {
		idx := strings.Index(lower[from:], word)
		if idx < 0 {
			return -1
		}
		idx += from
		before := idx == 0 || !isLetter(lower[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(lower) || !isLetter(lower[afterIdx])
		if before && after {
			return idx
		}
		from = idx + 1
	}
	return -1
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// normalizeMeridiem collapses "3 PM" style suffixes so the calendar layouts
// ("... 3pm") have a chance to match.
var meridiemRe = regexp.MustCompile(`(?i)(\d)\s*([ap])\.?m\.?\b`)

func normalizeMeridiem(text string) string {
	return meridiemRe.ReplaceAllStringFunc(text, func(s string) string {
		s = strings.Join(strings.Fields(s), "")
		s = strings.ReplaceAll(s, ".", "")
		return strings.ToLower(s)
	})
}

func titleCaseMonth(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if len(f) >= 3 {
			fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
		}
	}
	return strings.Join(fields, " ")
}
