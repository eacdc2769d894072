// Package mqtt exposes the sign on an MQTT broker: notifications and power
// commands come in on topics under a prefix, and the power state is
// published back retained, which is what Home Assistant's MQTT switch
// expects.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	natiu "github.com/soypat/natiu-mqtt"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

const (
	connectTimeout = 10 * time.Second
	maxPacketSize  = 4096
)

type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Broker      string        `mapstructure:"broker"` // host:port
	ClientID    string        `mapstructure:"client_id"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
	Reconnect   time.Duration `mapstructure:"reconnect"`
}

// Sign is the part of the controller driven over MQTT.
type Sign interface {
	Notify(ctx context.Context, text string) (data.Notification, error)
	SetPower(ctx context.Context, on bool) error
	PoweredOn() bool
}

type Control struct {
	cfg    Config
	sign   Sign
	logger *slog.Logger
	states chan bool // latest power state waiting to be published
}

func NewControl(cfg Config, sign Sign, logger *slog.Logger) *Control {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "mobitec"
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	return &Control{cfg: cfg, sign: sign, logger: logger, states: make(chan bool, 1)}
}

func (c *Control) NotifyTopic() string      { return c.cfg.TopicPrefix + "/notify" }
func (c *Control) SwitchSetTopic() string   { return c.cfg.TopicPrefix + "/switch/set" }
func (c *Control) SwitchStateTopic() string { return c.cfg.TopicPrefix + "/switch/state" }

// PowerChanged queues on for publishing. Only the latest state is kept; it
// never blocks, so it is safe to call with the controller locked.
func (c *Control) PowerChanged(on bool) {
	for {
		select {
		case c.states <- on:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}

// Run keeps a session to the broker open until ctx is cancelled,
// reconnecting after a fixed delay whenever it drops.
func (c *Control) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("mqtt session ended", "broker", c.cfg.Broker, "error", err, "retry_in", c.cfg.Reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.Reconnect):
		}
	}
}

func (c *Control) session(ctx context.Context) error {
	var dialer net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	conn, err := dialer.DialContext(dialCtx, "tcp", c.cfg.Broker)
	cancel()
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()

	client := natiu.NewClient(natiu.ClientConfig{
		Decoder: natiu.DecoderNoAlloc{UserBuffer: make([]byte, maxPacketSize)},
		OnPub: func(_ natiu.Header, varPub natiu.VariablesPublish, r io.Reader) error {
			payload, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			c.handleMessage(ctx, string(varPub.TopicName), payload)
			return nil
		},
	})

	var varconn natiu.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.cfg.ClientID))
	varconn.KeepAlive = uint16(c.cfg.KeepAlive / time.Second)
	if c.cfg.Username != "" {
		varconn.Username = []byte(c.cfg.Username)
		if c.cfg.Password != "" {
			varconn.Password = []byte(c.cfg.Password)
		}
	}

	conn.SetDeadline(time.Now().Add(connectTimeout))
	if err := client.StartConnect(conn, &varconn); err != nil {
		return fmt.Errorf("sending connect: %w", err)
	}
	for !client.IsConnected() {
		if err := client.HandleNext(); err != nil {
			return fmt.Errorf("awaiting connack: %w", err)
		}
	}
	conn.SetDeadline(time.Time{})

	err = client.StartSubscribe(natiu.VariablesSubscribe{
		PacketIdentifier: 1,
		TopicFilters: []natiu.SubscribeRequest{
			{TopicFilter: []byte(c.NotifyTopic()), QoS: natiu.QoS0},
			{TopicFilter: []byte(c.SwitchSetTopic()), QoS: natiu.QoS0},
		},
	})
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	c.logger.Info("mqtt connected", "broker", c.cfg.Broker, "prefix", c.cfg.TopicPrefix)

	// The reader owns inbound packets; this goroutine only writes.
	readErr := make(chan error, 1)
	go func() {
		for {
			if err := client.HandleNext(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	// Republishing the state well inside the keep-alive doubles as the ping.
	heartbeat := time.NewTicker(c.cfg.KeepAlive / 2)
	defer heartbeat.Stop()

	if err := c.publishState(client, conn, c.sign.PoweredOn()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err == nil {
				err = errors.New("connection closed")
			}
			return fmt.Errorf("reading: %w", err)
		case on := <-c.states:
			if err := c.publishState(client, conn, on); err != nil {
				return err
			}
		case <-heartbeat.C:
			if err := c.publishState(client, conn, c.sign.PoweredOn()); err != nil {
				return err
			}
		}
	}
}

func (c *Control) publishState(client *natiu.Client, conn net.Conn, on bool) error {
	flags, err := natiu.NewPublishFlags(natiu.QoS0, false, true)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(connectTimeout))
	err = client.PublishPayload(flags, natiu.VariablesPublish{TopicName: []byte(c.SwitchStateTopic())}, []byte(powerPayload(on)))
	if err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}

// handleMessage applies one inbound message. Unknown topics and switch
// payloads other than ON and OFF are ignored.
func (c *Control) handleMessage(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case c.NotifyTopic():
		n, err := c.sign.Notify(ctx, string(payload))
		if err != nil {
			c.logger.Warn("notification stored but sign update failed", "id", n.ID, "error", err)
			return
		}
		c.logger.Info("notification added", "id", n.ID, "text", n.Text, "via", "mqtt")

	case c.SwitchSetTopic():
		var on bool
		switch strings.TrimSpace(string(payload)) {
		case "ON":
			on = true
		case "OFF":
			on = false
		default:
			c.logger.Debug("ignoring switch payload", "payload", string(payload))
			return
		}
		if err := c.sign.SetPower(ctx, on); err != nil {
			c.logger.Warn("power changed but sign update failed", "on", on, "error", err)
		}

	default:
		c.logger.Debug("ignoring message", "topic", topic)
	}
}

func powerPayload(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
