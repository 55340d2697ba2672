// Package clock formats the fixed "YYYY-MM-DD HH:MM:SS ZZZ" timestamps §6
// requires on every Job.times field, in a configurable canonical timezone
// (default US/Pacific).
package clock

import (
	"strconv"
	"strings"
	"time"
)

const layout = "2006-01-02 15:04:05 MST"

// Clock stamps and parses times in one fixed location.
type Clock struct {
	loc *time.Location
	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// New loads the named IANA zone (e.g. "US/Pacific"); falls back to UTC if
// the zone can't be loaded (e.g. no tzdata on a minimal container image) so
// the engine degrades to a valid, merely less faithful, zone rather than
// failing startup.
func New(zone string) *Clock {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = "US/Pacific"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, Now: time.Now}
}

// Format renders t in the canonical layout and zone. A zero Time formats to "".
func (c *Clock) Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.loc).Format(layout)
}

// Parse reverses Format; used to re-read persisted metadata times.
func (c *Clock) Parse(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(layout, s, c.loc)
}

// NowString returns Format(c.Now()).
func (c *Clock) NowString() string {
	return c.Format(c.Now())
}

// Midnight truncates t to local midnight in the configured zone — used by
// the archive horizon check, which compares dates, not instants (see
// SPEC_FULL.md §3: "Coarse (date-only) archive-horizon comparison").
func (c *Clock) Midnight(t time.Time) time.Time {
	lt := t.In(c.loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DurationSeconds returns a duration as whole integer seconds, the value
// stored in the runtime_sec/turnaround_sec fields.
func DurationSeconds(d time.Duration) int64 {
	return int64(d.Seconds())
}

// FormatDurationHMS renders a duration the same way the legacy engine did
// for the human-readable "runtime"/"turnaround" string fields: H:MM:SS.
func FormatDurationHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
