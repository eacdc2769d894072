// internal/anomaly/detector.go
package anomaly

import (
	"fmt"
	"log/slog"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// Rule bounds one metric. A nil bound is not checked.
type Rule struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

type Detector struct {
	rules  map[data.Metric]Rule
	logger *slog.Logger
}

func NewDetector(rules map[data.Metric]Rule, logger *slog.Logger) *Detector {
	return &Detector{rules: rules, logger: logger}
}

// Enabled reports whether any rule is configured.
func (d *Detector) Enabled() bool {
	return len(d.rules) > 0
}

// Check compares every reading that has a rule against its bounds.
func (d *Detector) Check(snapshot data.SensorSnapshot) []data.Alert {
	var alerts []data.Alert

	for _, metric := range data.Metrics {
		rule, ok := d.rules[metric]
		if !ok {
			continue
		}

		value, err := snapshot.Float(metric)
		if err != nil {
			d.logger.Debug("skipping non-numeric reading for anomaly check", "metric", metric, "error", err)
			continue
		}

		var severity, direction string
		switch {
		case rule.Max != nil && value > *rule.Max:
			severity, direction = "HIGH", "high"
		case rule.Min != nil && value < *rule.Min:
			severity, direction = "LOW", "low"
		default:
			continue
		}

		alert := data.Alert{
			Timestamp: snapshot.Timestamp,
			Severity:  severity,
			Message:   fmt.Sprintf("%s %s: %s", labels[metric].name, direction, labels[metric].format(value)),
			Metric:    metric,
			Value:     value,
		}
		alerts = append(alerts, alert)
		d.logger.Warn("reading out of range", "metric", metric, "value", value, "severity", severity)
	}

	return alerts
}

type label struct {
	name   string
	unit   string
	digits int
}

func (l label) format(v float64) string {
	return fmt.Sprintf("%.*f%s", l.digits, v, l.unit)
}

var labels = map[data.Metric]label{
	data.MetricCO2:         {name: "CO2", unit: "ppm"},
	data.MetricPM25:        {name: "PM2.5", unit: "ug/m3", digits: 1},
	data.MetricVOC:         {name: "VOC", unit: ""},
	data.MetricHumidity:    {name: "Humidity", unit: "%", digits: 1},
	data.MetricTemperature: {name: "Temp", unit: "C", digits: 1},
}
