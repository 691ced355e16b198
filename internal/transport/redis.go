package transport

import (
	"context"
	"strconv"
	"sync"

	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"codeberg.org/mutker/chargectl/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	Logger    logger.Logger
}

func (c RedisConfig) key(suffix string) string {
	return c.KeyPrefix + ":" + suffix
}

// BatteryKey is the hash holding the state of channel id.
func (c RedisConfig) BatteryKey(id state.ChannelID) string {
	return c.key("battery:" + strconv.Itoa(int(id)))
}

// ResistorKey is the hash holding the resistor bank temperatures.
func (c RedisConfig) ResistorKey() string {
	return c.key("resistor")
}

// TelemetryChannel carries the full JSON record on every publish.
func (c RedisConfig) TelemetryChannel() string {
	return c.key("telemetry")
}

// CommandChannel carries inbound command frames.
func (c RedisConfig) CommandChannel() string {
	return c.key("relay")
}

// RedisLink mirrors telemetry into per-channel hashes and takes command
// frames from a pub/sub channel. Each hash key doubles as a notification
// channel announcing the names of changed fields.
type RedisLink struct {
	cfg    RedisConfig
	client *redis.Client
	pubsub *redis.PubSub
	msgs   <-chan *redis.Message

	mu   sync.Mutex
	last map[string]map[string]string

	done      chan struct{}
	closeOnce sync.Once
}

// DialRedis connects, checks the server with PING and subscribes to the
// command channel.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisLink, error) {
	errFactory := errors.New()

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errFactory.Wrap(ErrConnect, err)
	}

	pubsub := client.Subscribe(ctx, cfg.CommandChannel())
	// Wait for the subscription before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, errFactory.Wrap(ErrSubscribe, err)
	}

	cfg.Logger.Info().
		Str("address", cfg.Address).
		Str("command_channel", cfg.CommandChannel()).
		Msg("Connected to Redis")

	return &RedisLink{
		cfg:    cfg,
		client: client,
		pubsub: pubsub,
		msgs:   pubsub.Channel(),
		last:   make(map[string]map[string]string),
		done:   make(chan struct{}),
	}, nil
}

func (l *RedisLink) Name() string {
	return "redis"
}

func batteryFields(v telemetry.ChannelView) map[string]string {
	return map[string]string{
		"voltage":     v.Voltage.String(),
		"current":     v.Current.String(),
		"soc":         strconv.Itoa(v.SoC),
		"temperature": v.Temperature.String(),
		"mode":        state.Mode(v.ChargeMode).String(),
		"relay":       strconv.Itoa(v.RelayState),
		"fan":         strconv.Itoa(v.FanPWM),
		"duty":        strconv.Itoa(v.DutyCycle),
	}
}

func resistorFields(rec state.TelemetryRecord) map[string]string {
	fields := make(map[string]string, state.NumChannels+1)
	for _, id := range state.Channels() {
		fields["temperature:"+strconv.Itoa(int(id))] = telemetry.Fixed2(rec.Temperatures.Resistor[id.Index()]).String()
	}
	fields["fan"] = strconv.Itoa(rec.Fans.Resistor)
	return fields
}

// changed returns the names of fields that differ from prev, in a stable
// order.
func changed(prev, cur map[string]string) []string {
	var names []string
	for _, name := range sortedKeys(cur) {
		if old, ok := prev[name]; !ok || old != cur[name] {
			names = append(names, name)
		}
	}
	return names
}

func (l *RedisLink) Publish(ctx context.Context, rec state.TelemetryRecord) error {
	errFactory := errors.New()

	b, err := telemetry.Encode(rec)
	if err != nil {
		return err
	}

	hashes := make(map[string]map[string]string, state.NumChannels+1)
	for _, id := range state.Channels() {
		hashes[l.cfg.BatteryKey(id)] = batteryFields(telemetry.View(rec, id))
	}
	hashes[l.cfg.ResistorKey()] = resistorFields(rec)

	l.mu.Lock()
	defer l.mu.Unlock()

	pipe := l.client.TxPipeline()
	for _, key := range sortedKeys(hashes) {
		fields := hashes[key]
		values := make([]any, 0, len(fields)*2)
		for _, name := range sortedKeys(fields) {
			values = append(values, name, fields[name])
		}
		pipe.HSet(ctx, key, values...)

		for _, name := range changed(l.last[key], fields) {
			pipe.Publish(ctx, key, name)
		}
	}
	pipe.Publish(ctx, l.cfg.TelemetryChannel(), b)

	if _, err := pipe.Exec(ctx); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}

	// Only a committed transaction moves the change baseline.
	l.last = hashes
	return nil
}

func (l *RedisLink) ReceiveCommand(ctx context.Context) ([]byte, error) {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, errFactory.New(command.ErrSourceClosed)
	case msg, ok := <-l.msgs:
		if !ok {
			return nil, errFactory.New(command.ErrSourceClosed)
		}
		return []byte(msg.Payload), nil
	}
}

func (l *RedisLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = errors.Join(l.pubsub.Close(), l.client.Close())
	})
	return err
}
