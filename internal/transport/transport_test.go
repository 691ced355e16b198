package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() state.TelemetryRecord {
	return state.TelemetryRecord{
		Channels: [3]state.ChargeState{
			{Mode: state.ModeFast, DutyCycle: 42, SoC: 56, Voltage: 3.7, Current: 812.5},
			{Mode: state.ModeStop, SoC: 100, Voltage: 4.2},
			{Mode: state.ModeStandard, DutyCycle: 7, SoC: 12, Voltage: 3.45, Current: 499.5},
		},
		Temperatures: state.TemperatureSnapshot{
			Battery:  [3]float64{25, 51.25, 30.5},
			Resistor: [3]float64{35, 42, 38},
		},
		Fans:   state.FanState{Battery: [3]int{25, 100, 52}, Resistor: 73},
		Relays: state.RelayState{On: [3]bool{false, true, false}},
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TCP

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func newTCP(addr string, reconnect bool) *TCPLink {
	return NewTCPLink(TCPConfig{
		Address:   addr,
		Reconnect: reconnect,
		Clock:     clock.NewFake(time.Unix(1700000000, 0)),
		Logger:    logger.Nop(),
	})
}

func TestTCPReceiveAndPublish(t *testing.T) {
	ctx := testContext(t)
	ln := listen(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("101"))
		accepted <- conn
	}()

	link := newTCP(ln.Addr().String(), true)
	defer link.Close()

	assert.False(t, link.Connected())
	err := link.Publish(ctx, sampleRecord())
	assert.True(t, errors.HasCode(err, ErrNotConnected))

	frame, err := link.ReceiveCommand(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("101"), frame)
	assert.True(t, link.Connected())

	server := <-accepted
	defer server.Close()

	require.NoError(t, link.Publish(ctx, sampleRecord()))

	var got map[string]any
	require.NoError(t, json.NewDecoder(bufio.NewReader(server)).Decode(&got))
	assert.InDelta(t, 3.7, got["voltage_1"], 1e-9)
	assert.InDelta(t, 1, got["relay_state_2"], 1e-9)
	assert.InDelta(t, 73, got["resister_fan_pwm"], 1e-9)
}

func TestTCPReconnectsAfterServerDrop(t *testing.T) {
	ctx := testContext(t)
	ln := listen(t)

	go func() {
		first, err := ln.Accept()
		if err != nil {
			return
		}
		_ = first.Close()

		second, err := ln.Accept()
		if err != nil {
			return
		}
		defer second.Close()
		_, _ = second.Write([]byte("010"))
		time.Sleep(100 * time.Millisecond)
	}()

	link := newTCP(ln.Addr().String(), true)
	defer link.Close()

	_, err := link.ReceiveCommand(ctx)
	assert.True(t, errors.HasCode(err, ErrReceive))
	assert.False(t, link.Connected())

	frame, err := link.ReceiveCommand(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("010"), frame)
}

func TestTCPWithoutReconnectClosesAfterDialFailure(t *testing.T) {
	ctx := testContext(t)
	ln := listen(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	link := newTCP(addr, false)

	_, err := link.ReceiveCommand(ctx)
	assert.True(t, errors.HasCode(err, ErrDialFailed))

	_, err = link.ReceiveCommand(ctx)
	assert.True(t, errors.HasCode(err, command.ErrSourceClosed))
}

func TestTCPReceiveHonoursCancellation(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	link := newTCP(ln.Addr().String(), true)
	defer link.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := link.ReceiveCommand(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, link.Connected())
}

func TestTCPCloseEndsReceive(t *testing.T) {
	link := newTCP("127.0.0.1:1", true)
	require.NoError(t, link.Close())

	_, err := link.ReceiveCommand(testContext(t))
	assert.True(t, errors.HasCode(err, command.ErrSourceClosed))
}

// MQTT

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	published    []published
	subscribed   []string
	handler      mqtt.MessageHandler
	publishErr   error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return newToken(c.publishErr)
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.subscribed = append(c.subscribed, topic)
	c.handler = cb
	return newToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.disconnected = true
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return mqttQoS }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newMQTT(t *testing.T) (*MQTTLink, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	link := newMQTTLink(client, MQTTConfig{TopicPrefix: "chargectl/", Logger: logger.Nop()})
	require.NoError(t, link.subscribe(client))
	return link, client
}

func TestMQTTTopics(t *testing.T) {
	cfg := MQTTConfig{TopicPrefix: "site/a/"}
	assert.Equal(t, "site/a/telemetry", cfg.TelemetryTopic())
	assert.Equal(t, "site/a/relay/set", cfg.CommandTopic())
}

func TestMQTTPublish(t *testing.T) {
	link, client := newMQTT(t)

	require.NoError(t, link.Publish(testContext(t), sampleRecord()))
	require.Len(t, client.published, 1)
	assert.Equal(t, "chargectl/telemetry", client.published[0].topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.published[0].payload, &got))
	assert.InDelta(t, 56, got["soc_1"], 1e-9)

	client.publishErr = assert.AnError
	err := link.Publish(testContext(t), sampleRecord())
	assert.True(t, errors.HasCode(err, ErrSendFailed))
}

func TestMQTTReceiveCommand(t *testing.T) {
	link, client := newMQTT(t)
	assert.Equal(t, []string{"chargectl/relay/set"}, client.subscribed)

	payload := []byte("110")
	client.handler(nil, fakeMessage{topic: "chargectl/relay/set", payload: payload})
	payload[0] = '0'

	frame, err := link.ReceiveCommand(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("110"), frame)
}

func TestMQTTDropsWhenQueueFull(t *testing.T) {
	link, client := newMQTT(t)

	for range mqttFrameBuffer + 2 {
		client.handler(nil, fakeMessage{payload: []byte("000")})
	}
	assert.Len(t, link.frames, mqttFrameBuffer)
}

func TestMQTTClose(t *testing.T) {
	link, client := newMQTT(t)

	require.NoError(t, link.Close())
	require.NoError(t, link.Close())
	assert.True(t, client.disconnected)

	_, err := link.ReceiveCommand(testContext(t))
	assert.True(t, errors.HasCode(err, command.ErrSourceClosed))
}

// Redis

func newRedis(t *testing.T) (*RedisLink, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	link, err := DialRedis(testContext(t), RedisConfig{
		Address:   mr.Addr(),
		KeyPrefix: "chargectl",
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = link.Close() })
	return link, mr
}

func TestRedisDialFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := DialRedis(testContext(t), RedisConfig{Address: addr, Logger: logger.Nop()})
	assert.True(t, errors.HasCode(err, ErrConnect))
}

func TestRedisPublishWritesHashes(t *testing.T) {
	link, mr := newRedis(t)

	require.NoError(t, link.Publish(testContext(t), sampleRecord()))

	assert.Equal(t, "3.70", mr.HGet("chargectl:battery:1", "voltage"))
	assert.Equal(t, "812.50", mr.HGet("chargectl:battery:1", "current"))
	assert.Equal(t, "fast", mr.HGet("chargectl:battery:1", "mode"))
	assert.Equal(t, "42", mr.HGet("chargectl:battery:1", "duty"))
	assert.Equal(t, "1", mr.HGet("chargectl:battery:2", "relay"))
	assert.Equal(t, "51.25", mr.HGet("chargectl:battery:2", "temperature"))
	assert.Equal(t, "100", mr.HGet("chargectl:battery:2", "fan"))
	assert.Equal(t, "38.00", mr.HGet("chargectl:resistor", "temperature:3"))
	assert.Equal(t, "73", mr.HGet("chargectl:resistor", "fan"))
}

func TestRedisPublishNotifiesChangedFields(t *testing.T) {
	ctx := testContext(t)
	link, mr := newRedis(t)

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "chargectl:battery:1", "chargectl:telemetry")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)
	msgs := pubsub.Channel()

	rec := sampleRecord()
	require.NoError(t, link.Publish(ctx, rec))

	drain := func() (fields []string, records int) {
		for {
			select {
			case m := <-msgs:
				if m.Channel == "chargectl:telemetry" {
					records++
					// The record is the last message of a publish.
					return fields, records
				}
				fields = append(fields, m.Payload)
			case <-ctx.Done():
				t.Fatal("timed out waiting for notifications")
			}
		}
	}

	fields, records := drain()
	assert.Equal(t, 1, records)
	assert.ElementsMatch(t, []string{"current", "duty", "fan", "mode", "relay", "soc", "temperature", "voltage"}, fields)

	rec.Channels[0].SoC = 57
	require.NoError(t, link.Publish(ctx, rec))

	fields, _ = drain()
	assert.Equal(t, []string{"soc"}, fields)
}

func TestRedisReceiveCommand(t *testing.T) {
	link, mr := newRedis(t)

	mr.Publish("chargectl:relay", "011")

	frame, err := link.ReceiveCommand(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("011"), frame)

	require.NoError(t, link.Close())
	_, err = link.ReceiveCommand(testContext(t))
	assert.True(t, errors.HasCode(err, command.ErrSourceClosed))
}
