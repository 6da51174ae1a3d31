// Package timenorm resolves raw ETA expressions ("25 minutes", "1 hr 10",
// "23:30", "5pm") against a reference instant. It is pure: the only clock it
// consults is the reference passed in.
package timenorm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrFormatUnknown means the expression matched neither the duration nor
	// the clock-time grammar.
	ErrFormatUnknown = errors.New("eta format unknown")
	// ErrParse means the expression matched a pattern but carried an
	// out-of-range value (minute >= 60, 24h hour > 23, 12h hour > 12).
	ErrParse = errors.New("eta parse error")
)

var (
	// "1 hr 10", "25 minutes", "90 min", bare "25" (minutes).
	durationRe = regexp.MustCompile(`(?i)^(?:(\d{1,2})\s*(?:h|hr|hrs|hour|hours)\.?)?\s*(?:(\d{1,3})\s*(?:m|min|mins|minute|minutes)?\.?)?$`)
	// "23:30", "5:45pm", "5 pm". A bare number never reaches here; without a
	// colon the meridiem is mandatory so "25" stays a duration.
	clockRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?$`)
)

// Normalize converts raw into an absolute timestamp. Relative durations are
// added to ref; a bare number is minutes. Clock times resolve on ref's
// calendar date in ref's location; a candidate at or before ref rolls forward
// exactly one day, never more. Two-digit hours read as 24-hour values;
// ambiguous single-digit hours without am/pm resolve to whichever of the two
// interpretations lands nearest in the future.
func Normalize(raw string, ref time.Time) (time.Time, error) {
	expr := strings.TrimSpace(raw)
	if expr == "" {
		return time.Time{}, ErrFormatUnknown
	}

	if m := clockRe.FindStringSubmatch(expr); m != nil && (m[2] != "" || m[3] != "") {
		return resolveClock(m, ref)
	}
	if m := durationRe.FindStringSubmatch(expr); m != nil && (m[1] != "" || m[2] != "") {
		return resolveDuration(m, ref)
	}
	return time.Time{}, ErrFormatUnknown
}

func resolveDuration(m []string, ref time.Time) (time.Time, error) {
	var d time.Duration
	if m[1] != "" {
		h, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, ErrParse
		}
		d += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		min, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, ErrParse
		}
		d += time.Duration(min) * time.Minute
	}
	return ref.Add(d), nil
}

func resolveClock(m []string, ref time.Time) (time.Time, error) {
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, ErrParse
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return time.Time{}, ErrParse
		}
	}
	if minute >= 60 {
		return time.Time{}, ErrParse
	}

	meridiem := strings.ToLower(strings.ReplaceAll(m[3], ".", ""))
	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, ErrParse
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
		return rollForward(onDate(ref, hour, minute), ref), nil
	}

	if hour > 23 {
		return time.Time{}, ErrParse
	}
	// Hour 0, 13..23 and any two-digit hour ("09:15", "10:30", "12:00") are
	// unambiguous 24-hour values. Leading zeros and 10..12 only appear in
	// 24-hour writing; "9:15" is the form that could mean either.
	if hour == 0 || hour > 12 || len(m[1]) == 2 {
		return rollForward(onDate(ref, hour, minute), ref), nil
	}

	// Ambiguous single-digit hour without am/pm: both interpretations,
	// nearest future wins.
	c1 := rollForward(onDate(ref, hour, minute), ref)
	c2 := rollForward(onDate(ref, (hour+12)%24, minute), ref)
	if c2.Before(c1) {
		return c2, nil
	}
	return c1, nil
}

func onDate(ref time.Time, hour, minute int) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, ref.Location())
}

// rollForward applies the single-day rollover: an ETA at or before the
// reference instant is taken to mean the following day.
func rollForward(t, ref time.Time) time.Time {
	if !t.After(ref) {
		return t.AddDate(0, 0, 1)
	}
	return t
}
