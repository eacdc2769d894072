// internal/data/models.go
package data

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a message posted to the sign. It never changes after
// creation and expires once it is older than the notification TTL.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
}

// NewNotification stamps text with a fresh id and the given creation time.
func NewNotification(text string, createdAt time.Time) Notification {
	return Notification{ID: uuid.New(), CreatedAt: createdAt, Text: text}
}

// Age returns how long ago the notification was created, relative to now.
func (n Notification) Age(now time.Time) time.Duration {
	return now.Sub(n.CreatedAt)
}

// Metric names one of the ambient readings shown on the sign.
type Metric string

const (
	MetricCO2         Metric = "co2"
	MetricPM25        Metric = "pm25"
	MetricVOC         Metric = "voc"
	MetricHumidity    Metric = "humidity"
	MetricTemperature Metric = "temperature"
)

// Metrics lists every reading in the order they are fetched.
var Metrics = []Metric{MetricCO2, MetricPM25, MetricVOC, MetricHumidity, MetricTemperature}

// SensorSnapshot holds one fresh set of readings, as raw state strings.
type SensorSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CO2         string    `json:"co2"`
	PM25        string    `json:"pm25"`
	VOC         string    `json:"voc"`
	Humidity    string    `json:"humidity"`
	Temperature string    `json:"temperature"`
}

// Get returns the raw reading for metric, or "" for an unknown metric.
func (s SensorSnapshot) Get(metric Metric) string {
	switch metric {
	case MetricCO2:
		return s.CO2
	case MetricPM25:
		return s.PM25
	case MetricVOC:
		return s.VOC
	case MetricHumidity:
		return s.Humidity
	case MetricTemperature:
		return s.Temperature
	}
	return ""
}

// Set stores value under metric. Unknown metrics are ignored.
func (s *SensorSnapshot) Set(metric Metric, value string) {
	switch metric {
	case MetricCO2:
		s.CO2 = value
	case MetricPM25:
		s.PM25 = value
	case MetricVOC:
		s.VOC = value
	case MetricHumidity:
		s.Humidity = value
	case MetricTemperature:
		s.Temperature = value
	}
}

// Mobitec font codes used by the layouts.
const (
	FontSmall = 65 // 7px, lower line
	FontLabel = 67 // 7px bold, upper line
	FontLarge = 97 // full height
)

// Effect selects an animation the driver applies to a frame.
type Effect int

const (
	EffectNone Effect = iota
	EffectScrollRTL
)

func (e Effect) String() string {
	switch e {
	case EffectScrollRTL:
		return "scroll_rtl"
	}
	return "none"
}

// MarshalText renders the effect by name in JSON payloads.
func (e Effect) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Effect) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*e = EffectNone
	case "scroll_rtl":
		*e = EffectScrollRTL
	default:
		return fmt.Errorf("unknown effect %q", text)
	}
	return nil
}

// Area is a rectangle on the sign, in pixels: X0,Y0 inclusive, X1,Y1 exclusive.
type Area struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Frame is one renderable text block. A zero Duration means the frame
// carries no cycle duration of its own.
type Frame struct {
	Text         string        `json:"text"`
	X            int           `json:"x"`
	Y            int           `json:"y"`
	Font         int           `json:"font"`
	Duration     time.Duration `json:"duration,omitempty"`
	Area         *Area         `json:"area,omitempty"`
	Effect       Effect        `json:"effect,omitempty"`
	EffectCycles int           `json:"effect_cycles,omitempty"` // 0 loops forever
	EffectTime   time.Duration `json:"effect_time,omitempty"`
	EffectSpeed  int           `json:"effect_speed,omitempty"`
}

// Mode is the rendering branch a composition took.
type Mode int

const (
	ModeBlank Mode = iota
	ModeScroll
	ModeCyclic
)

func (m Mode) String() string {
	switch m {
	case ModeScroll:
		return "scroll"
	case ModeCyclic:
		return "cyclic"
	}
	return "blank"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "blank":
		*m = ModeBlank
	case "scroll":
		*m = ModeScroll
	case "cyclic":
		*m = ModeCyclic
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Composition is the full frame sequence for one dispatch to the driver.
type Composition struct {
	Mode       Mode            `json:"mode"`
	Frames     []Frame         `json:"frames"`
	UseEffects bool            `json:"use_effects"`
	Sensors    *SensorSnapshot `json:"sensors,omitempty"` // set only when readings were fetched
	ComposedAt time.Time       `json:"composed_at"`
}

// Alert is a reading outside its configured range.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"` // "LOW" or "HIGH"
	Message   string    `json:"message"`  // short enough for the lower line
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
}
