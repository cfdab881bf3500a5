// Package scalars implements the custom scalar values exchanged with the
// remote catalog: lossy-precision dates and RFC3339 timestamps with relative
// shortcuts.
package scalars

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Precision is the declared resolution of a FuzzyDate.
type Precision uint8

const (
	PrecisionYear Precision = iota
	PrecisionMonth
	PrecisionDay
)

func (p Precision) String() string {
	switch p {
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	default:
		return "year"
	}
}

// FuzzyDate is a date of year, month or day precision. The precision observed
// at parse time round-trips losslessly through String and MarshalJSON.
type FuzzyDate struct {
	Year      int
	Month     time.Month
	Day       int
	Precision Precision
}

var fuzzyDatePattern = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2}))?)?$`)

// ParseFuzzyDate accepts YYYY, YYYY-MM and YYYY-MM-DD forms.
func ParseFuzzyDate(s string) (FuzzyDate, error) {
	m := fuzzyDatePattern.FindStringSubmatch(s)
	if m == nil {
		return FuzzyDate{}, fmt.Errorf("invalid date %q: want YYYY, YYYY-MM or YYYY-MM-DD", s)
	}

	d := FuzzyDate{Precision: PrecisionYear}
	d.Year, _ = strconv.Atoi(m[1])

	if m[2] != "" {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return FuzzyDate{}, fmt.Errorf("invalid month in date %q", s)
		}
		d.Month = time.Month(month)
		d.Precision = PrecisionMonth
	}

	if m[3] != "" {
		day, _ := strconv.Atoi(m[3])
		daysIn := time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if day < 1 || day > daysIn {
			return FuzzyDate{}, fmt.Errorf("invalid day in date %q", s)
		}
		d.Day = day
		d.Precision = PrecisionDay
	}

	return d, nil
}

// MustFuzzyDate is ParseFuzzyDate for statically-known literals.
func MustFuzzyDate(s string) FuzzyDate {
	d, err := ParseFuzzyDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d FuzzyDate) String() string {
	switch d.Precision {
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

// Before orders dates by their most significant differing component. A
// coarser date sorts before a finer one within the same prefix.
func (d FuzzyDate) Before(other FuzzyDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d FuzzyDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *FuzzyDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFuzzyDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timestamp wraps a point in time that serializes as RFC3339 and additionally
// accepts relative shortcuts on input: Go durations ("-24h", "90m") and a day
// shorthand ("-3d"), resolved against the current clock.
type Timestamp struct {
	time.Time
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

var dayShorthand = regexp.MustCompile(`^([+-]?)(\d+)d$`)

// ParseTimestamp accepts RFC3339, a bare date, or a relative shortcut.
func ParseTimestamp(s string) (Timestamp, error) {
	return parseTimestampAt(s, time.Now().UTC())
}

func parseTimestampAt(s string, now time.Time) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Timestamp{Time: t}, nil
	}

	if m := dayShorthand.FindStringSubmatch(s); m != nil {
		days, _ := strconv.Atoi(m[2])
		if m[1] == "-" {
			days = -days
		}
		return Timestamp{Time: now.AddDate(0, 0, days)}, nil
	}

	if strings.ContainsAny(s, "hms") {
		if d, err := time.ParseDuration(s); err == nil {
			return Timestamp{Time: now.Add(d)}, nil
		}
	}

	return Timestamp{}, fmt.Errorf("invalid timestamp %q: want RFC3339 or a relative shortcut", s)
}

func (t Timestamp) String() string {
	return t.Time.Format(time.RFC3339)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
