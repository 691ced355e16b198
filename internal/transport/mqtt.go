package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"codeberg.org/mutker/chargectl/internal/telemetry"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttQuiesceMillis  = 250
	mqttFrameBuffer    = 8
)

type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	Logger      logger.Logger
}

func (c MQTTConfig) TelemetryTopic() string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/telemetry"
}

func (c MQTTConfig) CommandTopic() string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/relay/set"
}

// mqttClient is the part of mqtt.Client the link uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTLink publishes telemetry to <prefix>/telemetry and takes command
// frames from <prefix>/relay/set.
type MQTTLink struct {
	cfg    MQTTConfig
	client mqttClient

	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// DialMQTT connects to the broker and subscribes to the command topic.
func DialMQTT(cfg MQTTConfig) (*MQTTLink, error) {
	errFactory := errors.New()

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("chargectl-" + uuid.NewString())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		cfg.Logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	link := newMQTTLink(nil, cfg)

	// Resubscribe after every (re)connect; the session is clean.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := link.subscribe(c); err != nil {
			cfg.Logger.Error().Err(err).Msg("Failed to subscribe to command topic")
		}
	})

	client := mqtt.NewClient(opts)
	link.client = client

	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return nil, errFactory.WithData(ErrConnect, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(ErrConnect, err)
	}

	cfg.Logger.Info().
		Str("broker", cfg.Broker).
		Str("telemetry_topic", cfg.TelemetryTopic()).
		Str("command_topic", cfg.CommandTopic()).
		Msg("Connected to MQTT broker")

	return link, nil
}

func newMQTTLink(client mqttClient, cfg MQTTConfig) *MQTTLink {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &MQTTLink{
		cfg:    cfg,
		client: client,
		frames: make(chan []byte, mqttFrameBuffer),
		done:   make(chan struct{}),
	}
}

func (l *MQTTLink) subscribe(c mqttClient) error {
	token := c.Subscribe(l.cfg.CommandTopic(), mqttQoS, l.onMessage)
	if token.Wait() && token.Error() != nil {
		return errors.New().Wrap(ErrSubscribe, token.Error())
	}
	return nil
}

func (l *MQTTLink) onMessage(_ mqtt.Client, msg mqtt.Message) {
	frame := append([]byte(nil), msg.Payload()...)

	select {
	case l.frames <- frame:
	default:
		l.cfg.Logger.Warn().Str("topic", msg.Topic()).Msg("Command queue full, dropping MQTT command")
	}
}

func (l *MQTTLink) Name() string {
	return "mqtt"
}

func (l *MQTTLink) Publish(ctx context.Context, rec state.TelemetryRecord) error {
	errFactory := errors.New()

	b, err := telemetry.Encode(rec)
	if err != nil {
		return err
	}

	token := l.client.Publish(l.cfg.TelemetryTopic(), mqttQoS, false, b)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	return nil
}

func (l *MQTTLink) ReceiveCommand(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, errors.New().New(command.ErrSourceClosed)
	case frame := <-l.frames:
		return frame, nil
	}
}

func (l *MQTTLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		if l.client != nil {
			l.client.Disconnect(mqttQuiesceMillis)
		}
	})
	return nil
}
