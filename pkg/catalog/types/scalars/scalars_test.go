package scalars

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFuzzyDateRoundTripsAllPrecisions(t *testing.T) {
	is := is.New(t)

	for _, in := range []string{"1987", "1987-06", "1987-06-23"} {
		d, err := ParseFuzzyDate(in)
		is.NoErr(err)
		is.Equal(d.String(), in)

		again, err := ParseFuzzyDate(d.String())
		is.NoErr(err)
		is.Equal(again, d)
	}
}

func TestFuzzyDatePrecisionIsObserved(t *testing.T) {
	is := is.New(t)

	is.Equal(MustFuzzyDate("2001").Precision, PrecisionYear)
	is.Equal(MustFuzzyDate("2001-02").Precision, PrecisionMonth)
	is.Equal(MustFuzzyDate("2001-02-28").Precision, PrecisionDay)
}

func TestFuzzyDateRejectsMalformedInput(t *testing.T) {
	is := is.New(t)

	for _, in := range []string{"", "87", "1987-13", "1987-00", "1987-02-30", "1987/06/23", "1987-6-2"} {
		_, err := ParseFuzzyDate(in)
		is.True(err != nil) // should reject malformed date
	}
}

func TestFuzzyDateJSONRoundTrip(t *testing.T) {
	is := is.New(t)

	b, err := json.Marshal(MustFuzzyDate("1990-11"))
	is.NoErr(err)
	is.Equal(string(b), `"1990-11"`)

	var d FuzzyDate
	is.NoErr(json.Unmarshal(b, &d))
	is.Equal(d, MustFuzzyDate("1990-11"))
}

func TestFuzzyDateOrdering(t *testing.T) {
	is := is.New(t)

	is.True(MustFuzzyDate("1990").Before(MustFuzzyDate("1990-01")))
	is.True(MustFuzzyDate("1990-01-02").Before(MustFuzzyDate("1990-02")))
	is.True(!MustFuzzyDate("1991").Before(MustFuzzyDate("1990-12-31")))
}

func TestTimestampParsesRFC3339(t *testing.T) {
	is := is.New(t)

	ts, err := ParseTimestamp("2023-01-22T11:59:43Z")
	is.NoErr(err)
	is.Equal(ts.String(), "2023-01-22T11:59:43Z")
}

func TestTimestampParsesBareDate(t *testing.T) {
	is := is.New(t)

	ts, err := ParseTimestamp("2023-01-22")
	is.NoErr(err)
	is.Equal(ts.Time.Year(), 2023)
	is.Equal(ts.Time.Month(), time.January)
	is.Equal(ts.Time.Day(), 22)
}

func TestTimestampRelativeShortcuts(t *testing.T) {
	is := is.New(t)

	now := time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)

	ts, err := parseTimestampAt("-24h", now)
	is.NoErr(err)
	is.Equal(ts.Time, now.Add(-24*time.Hour))

	ts, err = parseTimestampAt("-3d", now)
	is.NoErr(err)
	is.Equal(ts.Time, now.AddDate(0, 0, -3))

	ts, err = parseTimestampAt("90m", now)
	is.NoErr(err)
	is.Equal(ts.Time, now.Add(90*time.Minute))
}

func TestTimestampRejectsGarbage(t *testing.T) {
	is := is.New(t)

	_, err := ParseTimestamp("soon")
	is.True(err != nil)
}
