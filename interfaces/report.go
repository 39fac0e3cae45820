package interfaces

import (
	"encoding/json"
	"fmt"
	"math"
)

// Section names a category of optional telemetry. Each section is sent as
// its own report next to the shared cycle timestamp.
type Section string

const (
	// SectionBattery carries the battery state.
	SectionBattery Section = "battery"
	// SectionConn carries the active connectivity state.
	SectionConn Section = "conn_active"
	// SectionLocGPS carries the last GPS-class location fix.
	SectionLocGPS Section = "loc_gps"
	// SectionLocNet carries the last network-class location fix.
	SectionLocNet Section = "loc_net"
	// SectionWifi carries the cached wireless scan results.
	SectionWifi Section = "wifi"
)

// OptionalSections lists every optional section in send order.
var OptionalSections = []Section{
	SectionBattery,
	SectionConn,
	SectionLocGPS,
	SectionLocNet,
	SectionWifi,
}

// String returns the wire name of the section.
func (s Section) String() string {
	return string(s)
}

// Valid reports whether s is one of the known optional sections.
func (s Section) Valid() bool {
	for _, known := range OptionalSections {
		if s == known {
			return true
		}
	}
	return false
}

// TimestampField is the report key holding the cycle timestamp in
// milliseconds since the Unix epoch.
const TimestampField = "ts"

// Report is the semantic form of one envelope: a mapping from field names
// to JSON-compatible values. Every report carries TimestampField and at most
// one Section.
type Report map[string]any

// NewPingReport builds the liveness report, which holds only the timestamp.
func NewPingReport(ts int64) Report {
	return Report{TimestampField: ts}
}

// NewSectionReport builds a report carrying ts and exactly one section value.
func NewSectionReport(ts int64, section Section, value any) Report {
	return Report{
		TimestampField: ts,
		string(section): value,
	}
}

// Timestamp extracts the cycle timestamp. Decoded reports hold numbers as
// json.Number, freshly built ones as int64.
func (r Report) Timestamp() (int64, error) {
	raw, ok := r[TimestampField]
	if !ok {
		return 0, fmt.Errorf("report has no %q field", TimestampField)
	}

	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("timestamp %v is not integral", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("timestamp has unexpected type %T", raw)
	}
}

// Section returns the section carried by the report, if any. A report with
// more than one section key is malformed.
func (r Report) Section() (Section, bool, error) {
	var found Section
	for key := range r {
		if key == TimestampField {
			continue
		}

		section := Section(key)
		if !section.Valid() {
			return "", false, fmt.Errorf("unknown report field %q", key)
		}
		if found != "" {
			return "", false, fmt.Errorf("report carries more than one section: %s, %s", found, section)
		}
		found = section
	}

	return found, found != "", nil
}

// Validate checks the structural invariants of a report: a timestamp and
// at most one known section.
func (r Report) Validate() error {
	if _, err := r.Timestamp(); err != nil {
		return err
	}
	_, _, err := r.Section()
	return err
}

// Kind names the report for logging and archiving: the section name, or
// "ping" for a timestamp-only report.
func (r Report) Kind() string {
	section, ok, err := r.Section()
	if err != nil || !ok {
		return "ping"
	}
	return section.String()
}
