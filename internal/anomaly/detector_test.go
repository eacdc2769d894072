package anomaly

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

func bound(v float64) *float64 { return &v }

func newDetector(rules map[data.Metric]Rule) *Detector {
	return NewDetector(rules, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheck(t *testing.T) {
	d := newDetector(map[data.Metric]Rule{
		data.MetricCO2:         {Max: bound(1500)},
		data.MetricHumidity:    {Min: bound(30), Max: bound(70)},
		data.MetricTemperature: {Min: bound(16)},
	})

	alerts := d.Check(data.SensorSnapshot{
		CO2:         "1650.4",
		Humidity:    "25.0",
		Temperature: "21.5",
		VOC:         "400",
	})

	require.Len(t, alerts, 2)
	assert.Equal(t, data.MetricCO2, alerts[0].Metric)
	assert.Equal(t, "HIGH", alerts[0].Severity)
	assert.Equal(t, "CO2 high: 1650ppm", alerts[0].Message)
	assert.Equal(t, data.MetricHumidity, alerts[1].Metric)
	assert.Equal(t, "Humidity low: 25.0%", alerts[1].Message)
}

func TestCheck_BoundsAreExclusive(t *testing.T) {
	d := newDetector(map[data.Metric]Rule{data.MetricCO2: {Min: bound(400), Max: bound(1500)}})

	assert.Empty(t, d.Check(data.SensorSnapshot{CO2: "1500"}))
	assert.Empty(t, d.Check(data.SensorSnapshot{CO2: "400"}))
}

func TestCheck_SkipsNonNumeric(t *testing.T) {
	d := newDetector(map[data.Metric]Rule{data.MetricPM25: {Max: bound(25)}})
	assert.Empty(t, d.Check(data.SensorSnapshot{PM25: "unavailable"}))
}

func TestEnabled(t *testing.T) {
	assert.False(t, newDetector(nil).Enabled())
	assert.True(t, newDetector(map[data.Metric]Rule{data.MetricVOC: {Max: bound(250)}}).Enabled())
}
