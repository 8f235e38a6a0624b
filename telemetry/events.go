// Package telemetry provides simulation health tracking and experiment output.
package telemetry

import "github.com/pthm-cable/bubblecomplex/systems"

// EventRecord is one row of events.csv.
type EventRecord struct {
	Tick     int32   `csv:"tick"`
	Type     string  `csv:"type"`
	Subject  uint32  `csv:"subject"`
	Other    uint32  `csv:"other"`
	Radius   float64 `csv:"radius"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Hardened bool    `csv:"hardened"`
}

// NewEventRecord flattens a bubble event.
func NewEventRecord(ev systems.Event) EventRecord {
	return EventRecord{
		Tick:     ev.Tick,
		Type:     ev.Type.String(),
		Subject:  ev.SubjectID,
		Other:    ev.OtherID,
		Radius:   ev.Radius,
		X:        ev.Position.X,
		Y:        ev.Position.Y,
		Hardened: ev.Hardened,
	}
}

// IsDiscrete reports whether t marks a state transition rather than a
// per-tick value update. Only discrete events are written to events.csv.
func IsDiscrete(t systems.EventType) bool {
	switch t {
	case systems.EventRadiusChanged, systems.EventPositionChanged:
		return false
	}
	return true
}
