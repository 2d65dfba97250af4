package tetherdb

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Reserved document fields
const (
	TimestampField = "timestamp"
	DeviceIDField  = "device_id"
	IDField        = "_id"
)

// TimeAnnotator stamps documents with the current time and renders stored
// timestamps for display.
type TimeAnnotator struct {
	Now      func() time.Time
	Location *time.Location
}

// NewTimeAnnotator returns an annotator on the wall clock in time.Local
func NewTimeAnnotator() *TimeAnnotator {
	return &TimeAnnotator{Now: time.Now, Location: time.Local}
}

func (a *TimeAnnotator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *TimeAnnotator) location() *time.Location {
	if a.Location == nil {
		return time.Local
	}
	return a.Location
}

// Epoch returns the current time as fractional seconds since the Unix epoch.
func (a *TimeAnnotator) Epoch() float64 {
	return float64(a.now().UnixNano()) / float64(time.Second)
}

// Annotate sets doc's timestamp to the current epoch seconds.
func (a *TimeAnnotator) Annotate(doc Document) {
	doc[TimestampField] = a.Epoch()
}

// ToDisplay formats epoch seconds as YYYY-MM-DDTHH:MM:SS followed by label.
// The calendar fields are taken in the annotator's location; label is appended
// verbatim and does not shift the time. An empty label means DefaultOffsetLabel.
func (a *TimeAnnotator) ToDisplay(epochSeconds float64, label string) string {
	if label == "" {
		label = DefaultOffsetLabel
	}
	sec, frac := math.Modf(epochSeconds)
	t := time.Unix(int64(sec), int64(frac*float64(time.Second))).In(a.location())

	return fmt.Sprintf("%d-%02d-%02dT%02d:%02d:%02d%s",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), label)
}

// DisplayDocument replaces a numeric timestamp in doc with its display form.
// Documents without a numeric timestamp are left unchanged.
func (a *TimeAnnotator) DisplayDocument(doc Document, label string) {
	if epoch, ok := Timestamp(doc); ok {
		doc[TimestampField] = a.ToDisplay(epoch, label)
	}
}

// Timestamp returns doc's stored epoch seconds, if it holds a number.
func Timestamp(doc Document) (float64, bool) {
	return toFloat(doc[TimestampField])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
