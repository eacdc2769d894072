package alerting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/anomaly"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

type recordingNotifier struct {
	texts []string
}

func (r *recordingNotifier) Notify(_ context.Context, text string) (data.Notification, error) {
	r.texts = append(r.texts, text)
	return data.Notification{Text: text}, nil
}

func setup(rules map[data.Metric]anomaly.Rule) (*Alerter, *recordingNotifier, *clock.FakeClock) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Fake(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	a := NewAlerter(anomaly.NewDetector(rules, logger), notifier, clk, 30*time.Minute, logger)
	return a, notifier, clk
}

func maxRule(v float64) anomaly.Rule { return anomaly.Rule{Max: &v} }

func TestObserve_Cooldown(t *testing.T) {
	a, notifier, clk := setup(map[data.Metric]anomaly.Rule{data.MetricCO2: maxRule(1500)})
	ctx := context.Background()
	high := data.SensorSnapshot{CO2: "1800"}

	a.Observe(ctx, high)
	assert.Equal(t, []string{"CO2 high: 1800ppm"}, notifier.texts)

	clk.Advance(29 * time.Minute)
	a.Observe(ctx, high)
	assert.Len(t, notifier.texts, 1, "still cooling down")

	clk.Advance(time.Minute)
	a.Observe(ctx, high)
	assert.Len(t, notifier.texts, 2)
}

func TestObserve_PerMetricCooldown(t *testing.T) {
	a, notifier, _ := setup(map[data.Metric]anomaly.Rule{
		data.MetricCO2: maxRule(1500),
		data.MetricVOC: maxRule(250),
	})
	ctx := context.Background()

	a.Observe(ctx, data.SensorSnapshot{CO2: "1800", VOC: "100"})
	a.Observe(ctx, data.SensorSnapshot{CO2: "1800", VOC: "300"})

	assert.Equal(t, []string{"CO2 high: 1800ppm", "VOC high: 300"}, notifier.texts)
}

func TestObserve_DisabledWithoutRules(t *testing.T) {
	a, notifier, _ := setup(nil)
	a.Observe(context.Background(), data.SensorSnapshot{CO2: "5000"})
	assert.Empty(t, notifier.texts)
}
