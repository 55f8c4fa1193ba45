// Package extract turns free-form Brazilian Portuguese text into a
// structured appointment time and optional place name. It is pure and
// deterministic: no store access, no network, "now" is injectable.
//
// The date cascade trades recall for precision. A date with no explicit
// time signal is rejected rather than guessed at, so "dia 25" alone never
// silently schedules something for midnight.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the extraction outcome. Start is nil when the text carries no
// actionable schedule; Location is empty when no place was mentioned.
type Result struct {
	Start    *time.Time
	Location string
}

// Extractor holds the extraction policy: timezone, year-rollover behavior
// and the gazetteer of known places.
type Extractor struct {
	loc      *time.Location
	rollover bool
	now      func() time.Time
	places   []place
}

// Opts holds parameters for creating an Extractor.
type Opts struct {
	Location     *time.Location   // defaults to time.Local
	YearRollover bool             // roll past month/day combinations into next year
	Now          func() time.Time // defaults to time.Now; injectable for tests
	ExtraPlaces  []string         // gazetteer additions beyond the built-ins
}

// New creates an Extractor.
func New(opts Opts) *Extractor {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		loc:      loc,
		rollover: opts.YearRollover,
		now:      now,
		places:   buildGazetteer(opts.ExtraPlaces),
	}
}

// months maps Portuguese month names to their index.
var months = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February,
	"março": time.March, "marco": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

var (
	// absoluteDateRe matches "[dia] 25 de dezembro", "25 do 12", "25h de janeiro".
	// The stray "h" after the day is tolerated because users write
	// "dia 25h de dezembro" when dictating.
	absoluteDateRe = regexp.MustCompile(`(?i)(?:dia\s+)?(\d{1,2})h?\s*,?\s*d[eo]\s+([\p{L}\d]+)`)

	// slashDateRe matches DD/MM.
	slashDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)

	// hourRe captures the hour from an explicit time expression: a number
	// preceded by "às/as/até" or followed by "h"/"horas"/":00". A bare
	// number never matches, so a day of month is not misread as an hour.
	hourRe = regexp.MustCompile(`(?i)(?:^|[\s,])(?:às|as|até|ate)\s*(\d{1,2})|(\d{1,2})\s*h(?:oras?)?\b|(\d{1,2}):00\b`)

	// timeSignalRe is the second "looks like a time" guard: something in
	// the text must read as a time expression before an hour is accepted.
	timeSignalRe = regexp.MustCompile(`(?i)às|\bas\b|hora|\dh\b|\d:00\b`)
)

// Extract runs the full cascade: date rules in priority order, then the
// independent time extraction, then location sub-extraction.
//
// Combination policy: date+time → that date at that hour; date without a
// time signal → no schedule (nil Start); time without a date → today at
// that hour; neither → nil Start. Location is reported regardless.
func (e *Extractor) Extract(text string) Result {
	res := Result{Location: e.extractLocation(text)}

	now := e.now().In(e.loc)
	lower := strings.ToLower(text)

	year, month, day, hasDate := e.extractDate(lower, now)

	hour, hasTime := extractHour(lower)
	if !hasTime {
		// A date alone is not actionable; the caller asks the user again.
		return res
	}

	if !hasDate {
		year, month, day = now.Date()
	}
	start := time.Date(year, month, day, hour, 0, 0, 0, e.loc)
	res.Start = &start
	return res
}

// extractDate applies the date rules in priority order, first match wins.
func (e *Extractor) extractDate(lower string, now time.Time) (int, time.Month, int, bool) {
	// Rule 1: absolute named-month (or numeric-month) date.
	if m := absoluteDateRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		if month, ok := resolveMonth(m[2]); ok && day >= 1 && day <= 31 {
			return e.applyRollover(now, month, day)
		}
	}

	// Rule 2: DD/MM. Out-of-range values fall through to the next rule.
	if m := slashDateRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return e.applyRollover(now, time.Month(month), day)
		}
	}

	// Rule 3: relative keywords.
	if strings.Contains(lower, "amanhã") || strings.Contains(lower, "amanha") {
		y, m, d := now.AddDate(0, 0, 1).Date()
		return y, m, d, true
	}
	if strings.Contains(lower, "hoje") {
		y, m, d := now.Date()
		return y, m, d, true
	}

	return 0, 0, 0, false
}

// resolveMonth accepts a Portuguese month name or a 1-12 number.
func resolveMonth(token string) (time.Month, bool) {
	if m, ok := months[token]; ok {
		return m, true
	}
	if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), true
	}
	return 0, false
}

// applyRollover anchors month/day in the current year, advancing one year
// when the resulting date is already past. Rolling a date that is "today
// but earlier" is a policy choice, which is why it is configurable.
func (e *Extractor) applyRollover(now time.Time, month time.Month, day int) (int, time.Month, int, bool) {
	year := now.Year()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, e.loc)
	if e.rollover && candidate.Before(now) {
		year++
	}
	return year, month, day, true
}

// extractHour finds an explicit hour token, bounded to 0-23. Both the hour
// pattern and the time-signal guard must match. Every candidate is scanned:
// a stray day token like "25h" (tolerated by the date rule) fails the bound
// and the real time expression may sit later in the text.
func extractHour(lower string) (int, bool) {
	if !timeSignalRe.MatchString(lower) {
		return 0, false
	}
	for _, m := range hourRe.FindAllStringSubmatch(lower, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if hour, err := strconv.Atoi(g); err == nil && hour >= 0 && hour <= 23 {
				return hour, true
			}
		}
	}
	return 0, false
}
