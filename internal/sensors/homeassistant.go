// internal/sensors/homeassistant.go

// Package sensors reads the ambient readings shown on the sign from the
// Home Assistant REST API.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// ErrEntityNotFound is returned when Home Assistant does not know an entity.
var ErrEntityNotFound = errors.New("entity not found")

// maxStateSize bounds the body read for a single state object.
const maxStateSize = 64 << 10

// Config selects the Home Assistant instance and the entity per metric.
type Config struct {
	URL      string                 `mapstructure:"url"`
	Token    string                 `mapstructure:"token"`
	Timeout  time.Duration          `mapstructure:"timeout"`
	Entities map[data.Metric]string `mapstructure:"entities"`
}

// DefaultEntities are the hallway air sensors the sign was built for.
func DefaultEntities() map[data.Metric]string {
	return map[data.Metric]string{
		data.MetricCO2:         "sensor.co2_meter_co2",
		data.MetricPM25:        "sensor.flur_luft_pm25",
		data.MetricVOC:         "sensor.flur_luft_voc_index",
		data.MetricHumidity:    "sensor.flur_luft_humidity",
		data.MetricTemperature: "sensor.flur_luft_temperature",
	}
}

// HomeAssistant fetches readings with one state request per metric.
// It never caches: every Snapshot call goes to the server.
type HomeAssistant struct {
	baseURL  *url.URL
	token    string
	timeout  time.Duration
	entities map[data.Metric]string
	client   *http.Client
	clock    clock.Clock
	logger   *slog.Logger
}

func NewHomeAssistant(cfg Config, client *http.Client, clk clock.Clock, logger *slog.Logger) (*HomeAssistant, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing home assistant url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("home assistant url %q must be absolute", cfg.URL)
	}
	entities := DefaultEntities()
	for metric, id := range cfg.Entities {
		entities[metric] = id
	}
	if client == nil {
		client = http.DefaultClient
	}
	if clk == nil {
		clk = clock.Real()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HomeAssistant{
		baseURL:  base,
		token:    cfg.Token,
		timeout:  timeout,
		entities: entities,
		client:   client,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Snapshot reads all five metrics. The whole round trip shares one timeout,
// and the first failing entity aborts it.
func (h *HomeAssistant) Snapshot(ctx context.Context) (data.SensorSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var snap data.SensorSnapshot
	for _, metric := range data.Metrics {
		st, err := h.State(ctx, h.entities[metric])
		if err != nil {
			return data.SensorSnapshot{}, fmt.Errorf("%s: %w", metric, err)
		}
		snap.Set(metric, st.State)
	}
	snap.Timestamp = h.clock.Now()
	return snap, nil
}

// State fetches a single entity.
func (h *HomeAssistant) State(ctx context.Context, entityID string) (*data.EntityState, error) {
	endpoint := h.baseURL.JoinPath("api", "states", entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", entityID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStateSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", entityID, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("requesting %s: unexpected status %s", entityID, resp.Status)
	}

	st, err := data.ParseEntityState(body)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("sensor state", "entity", entityID, "state", st.State)
	return st, nil
}
