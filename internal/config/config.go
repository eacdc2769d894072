// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/anomaly"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/mobitec"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/mqtt"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/sensors"
)

// EnvPrefix prefixes environment overrides, e.g. MOBITEC_HOMEASSISTANT_TOKEN.
const EnvPrefix = "MOBITEC"

type Config struct {
	Server struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"server"`

	Display struct {
		Driver      string         `mapstructure:"driver"` // mobitec, terminal or log
		Mobitec     mobitec.Config `mapstructure:"mobitec"`
		SendTimeout time.Duration  `mapstructure:"send_timeout"`
	} `mapstructure:"display"`

	HomeAssistant sensors.Config `mapstructure:"homeassistant"`

	Notifications struct {
		TTL         time.Duration `mapstructure:"ttl"`
		CycleTime   time.Duration `mapstructure:"cycle_time"`
		ScrollSpeed int           `mapstructure:"scroll_speed"`
	} `mapstructure:"notifications"`

	Scheduler struct {
		Tick time.Duration `mapstructure:"tick"`
	} `mapstructure:"scheduler"`

	Timezone string `mapstructure:"timezone"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // text or json
	} `mapstructure:"log"`

	MQTT mqtt.Config `mapstructure:"mqtt"`

	Anomaly struct {
		Rules    map[data.Metric]anomaly.Rule `mapstructure:"rules"`
		Cooldown time.Duration                `mapstructure:"cooldown"`
	} `mapstructure:"anomaly"`
}

// Location resolves Timezone; empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads config.yaml from dir (if present), then environment overrides,
// then any flags that were set explicitly. Flags are bound by name, so a
// flag called "server.listen" overrides that key.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Display.Driver {
	case "mobitec", "terminal", "log":
	default:
		return fmt.Errorf("unknown display driver %q", c.Display.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	for metric := range c.Anomaly.Rules {
		if !knownMetric(metric) {
			return fmt.Errorf("anomaly rule for unknown metric %q", metric)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func knownMetric(m data.Metric) bool {
	for _, known := range data.Metrics {
		if m == known {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":2343")

	v.SetDefault("display.driver", "mobitec")
	v.SetDefault("display.mobitec.port", "/dev/ttyUSB0")
	v.SetDefault("display.mobitec.address", 6)
	v.SetDefault("display.mobitec.baud", 4800)
	v.SetDefault("display.mobitec.width", 144)
	v.SetDefault("display.mobitec.height", 16)
	v.SetDefault("display.mobitec.char_width", 6)
	v.SetDefault("display.send_timeout", 5*time.Second)

	v.SetDefault("homeassistant.url", "http://localhost:8123")
	v.SetDefault("homeassistant.token", "")
	v.SetDefault("homeassistant.timeout", 5*time.Second)
	for metric, entity := range sensors.DefaultEntities() {
		v.SetDefault("homeassistant.entities."+string(metric), entity)
	}

	v.SetDefault("notifications.ttl", 2*time.Hour)
	v.SetDefault("notifications.cycle_time", 3*time.Second)
	v.SetDefault("notifications.scroll_speed", 60)

	v.SetDefault("scheduler.tick", time.Second)
	v.SetDefault("timezone", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "mobitec-notify")
	v.SetDefault("mqtt.topic_prefix", "mobitec")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.keep_alive", 60*time.Second)
	v.SetDefault("mqtt.reconnect", 10*time.Second)

	v.SetDefault("anomaly.cooldown", 30*time.Minute)
}
