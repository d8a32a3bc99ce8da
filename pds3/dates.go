package pds3

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts lists the PDS3 date spellings this parser accepts:
// calendar dates, day-of-year ("ordinal") dates, and both with an
// optional time-of-day component (fractional seconds and/or a trailing
// "Z" both optional).
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-002T15:04:05.999999Z",
	"2006-002T15:04:05.999999",
	"2006-002T15:04:05Z",
	"2006-002T15:04:05",
	"2006-002",
}

// parseDate attempts every supported layout in turn and reports whether
// the token is a recognized PDS3 date at all (isDate=false lets the
// caller fall back to treating the token as a plain string/bareword).
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := parseISOWeekDate(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// parseISOWeekDate handles the ISO-8601 week-numbering form
// YYYY-Www-D (e.g. 1994-W41-3), which time.Parse has no layout for.
func parseISOWeekDate(s string) (time.Time, bool) {
	parts := strings.SplitN(s, "-W", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	rest := strings.SplitN(parts[1], "-", 2)
	week, err := strconv.Atoi(rest[0])
	if err != nil {
		return time.Time{}, false
	}
	day := 1
	if len(rest) == 2 {
		day, err = strconv.Atoi(rest[1])
		if err != nil {
			return time.Time{}, false
		}
	}
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	isoYearDay, isoWeekDay := jan4.YearDay(), int(jan4.Weekday())
	if isoWeekDay == 0 {
		isoWeekDay = 7
	}
	weekOneMonday := jan4.AddDate(0, 0, -(isoWeekDay - 1))
	_ = isoYearDay
	target := weekOneMonday.AddDate(0, 0, (week-1)*7+(day-1))
	return target, true
}

// looksLikeDate is a cheap pre-filter used before attempting the full
// parseDate pass: a date token always starts with four digits.
func looksLikeDate(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s[:4] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
