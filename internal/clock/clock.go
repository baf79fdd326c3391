// Package clock centralizes local-time handling: every timestamp the service
// stores, renders or parses goes through a Zone.
package clock

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DisplayLayout is the wire format of ProbeResult timestamps.
	DisplayLayout = "2006-01-02 15:04:05"
	// StorageLayout keeps millisecond precision and sorts lexically.
	StorageLayout = "2006-01-02 15:04:05.000"
	dateLayout    = "2006-01-02"
)

// Zone converts instants to and from the configured local zone.
type Zone struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Zone for the IANA name. An empty name means the process zone.
func New(name string) (*Zone, error) {
	if strings.TrimSpace(name) == "" {
		return &Zone{loc: time.Local, now: time.Now}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return &Zone{loc: loc, now: time.Now}, nil
}

// Fixed returns a Zone whose Now always reports t. Used by tests.
func Fixed(loc *time.Location, t time.Time) *Zone {
	return &Zone{loc: loc, now: func() time.Time { return t }}
}

// WithNow returns a copy of z that reads the current instant from now.
func (z *Zone) WithNow(now func() time.Time) *Zone {
	return &Zone{loc: z.loc, now: now}
}

// Location returns the configured zone.
func (z *Zone) Location() *time.Location { return z.loc }

// Name is the zone name reported to the dashboard.
func (z *Zone) Name() string { return z.loc.String() }

// Now is the current instant in the local zone, truncated to milliseconds.
func (z *Zone) Now() time.Time {
	return z.Local(z.now())
}

// Local converts t into the zone and drops sub-millisecond precision, the
// resolution every store persists.
func (z *Zone) Local(t time.Time) time.Time {
	return t.In(z.loc).Truncate(time.Millisecond)
}

// Format renders t as "YYYY-MM-DD HH:mm:ss" in the zone.
func (z *Zone) Format(t time.Time) string {
	return t.In(z.loc).Format(DisplayLayout)
}

// FormatStorage renders t with millisecond precision for text columns.
func (z *Zone) FormatStorage(t time.Time) string {
	return t.In(z.loc).Format(StorageLayout)
}

// ParseStorage is the inverse of FormatStorage.
func (z *Zone) ParseStorage(s string) (time.Time, error) {
	return time.ParseInLocation(StorageLayout, s, z.loc)
}

// Parse accepts RFC 3339 (what a browser's toISOString sends), the display
// layout, the storage layout or a bare date. Layouts without an offset are
// read in the zone.
func (z *Zone) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(z.loc), nil
	}
	for _, layout := range []string{StorageLayout, DisplayLayout, "2006-01-02T15:04:05", "2006-01-02T15:04", dateLayout} {
		if t, err := time.ParseInLocation(layout, s, z.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// HourFloor returns the start of the local hour containing t. It subtracts the
// wall-clock minutes and seconds instead of rebuilding the date, so zones with
// half-hour offsets and DST transitions still land on a real instant.
func (z *Zone) HourFloor(t time.Time) time.Time {
	lt := t.In(z.loc)
	off := time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
	return lt.Add(-off)
}
