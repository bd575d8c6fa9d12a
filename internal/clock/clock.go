// Package clock renders ingestion timestamps in a single fixed timezone so
// readings sort and display identically regardless of where the daemon runs.
package clock

import "time"

// IST is UTC+5:30. A fixed zone avoids a runtime tzdata dependency.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Layout is the wire format for reading timestamps: 24-hour clock, no locale.
const Layout = "2006-01-02 15:04:05"

// Clock supplies the current instant. Injected so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

// Format renders t in IST using Layout.
func Format(t time.Time) string {
	return t.In(IST).Format(Layout)
}
