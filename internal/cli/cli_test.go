package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/config"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/display"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mobitec-notify", cmd.Use)

	for _, name := range []string{"serve", "notify", "switch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestServeFlagsMatchConfigKeys(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, key := range []string{"server.listen", "display.driver", "display.mobitec.port", "log.level", "log.format"} {
		assert.NotNil(t, serve.Flags().Lookup(key), key)
	}
}

// fakeInstance records requests like a running controller would see them.
type fakeInstance struct {
	mu       sync.Mutex
	messages []string
	state    string
}

func (f *fakeInstance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/notify.json":
		f.messages = append(f.messages, r.URL.Query().Get("message"))
		io.WriteString(w, `{"test": true}`)
	case "/switch.json":
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			f.state = string(body)
		}
		io.WriteString(w, f.state)
	default:
		http.NotFound(w, r)
	}
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNotifyCommand(t *testing.T) {
	inst := &fakeInstance{state: "ON"}
	srv := httptest.NewServer(inst)
	defer srv.Close()

	_, err := execute(t, srv, "notify", "Pizza", "is", "here & hot")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pizza is here & hot"}, inst.messages)
}

func TestNotifyCommand_RequiresText(t *testing.T) {
	srv := httptest.NewServer(&fakeInstance{})
	defer srv.Close()

	_, err := execute(t, srv, "notify")
	assert.Error(t, err)
}

func TestSwitchCommand(t *testing.T) {
	inst := &fakeInstance{state: "ON"}
	srv := httptest.NewServer(inst)
	defer srv.Close()

	out, err := execute(t, srv, "switch")
	require.NoError(t, err)
	assert.Equal(t, "ON\n", out)

	out, err = execute(t, srv, "switch", "off")
	require.NoError(t, err)
	assert.Equal(t, "OFF\n", out)

	out, err = execute(t, srv, "switch", "On")
	require.NoError(t, err)
	assert.Equal(t, "ON\n", out)

	_, err = execute(t, srv, "switch", "toggle")
	assert.Error(t, err)
}

func TestClient_ReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := execute(t, srv, "switch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"key":"value"`)

	_, err = newLogger("loud", "text", &buf)
	assert.Error(t, err)
}

func TestOpenDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, ctx := errgroup.WithContext(context.Background())

	tests := []struct {
		driver string
		check  func(t *testing.T, d display.Driver)
	}{
		{"terminal", func(t *testing.T, d display.Driver) { assert.IsType(t, &display.Terminal{}, d) }},
		{"log", func(t *testing.T, d display.Driver) { assert.IsType(t, display.LogDriver{}, d) }},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Display.Driver = tt.driver
			cfg.Display.Mobitec.Width = 144

			d, closer, err := openDriver(ctx, g, cfg, nil, io.Discard, logger)
			require.NoError(t, err)
			assert.Nil(t, closer)
			tt.check(t, d)
		})
	}

	cfg := &config.Config{}
	cfg.Display.Driver = "hdmi"
	_, _, err := openDriver(ctx, g, cfg, nil, io.Discard, logger)
	assert.Error(t, err)

	cfg.Display.Driver = "mobitec"
	cfg.Display.Mobitec.Port = "/dev/does-not-exist-" + strings.Repeat("x", 8)
	_, _, err = openDriver(ctx, g, cfg, nil, io.Discard, logger)
	assert.Error(t, err)
}
