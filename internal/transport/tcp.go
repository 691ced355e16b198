// Package transport connects the controller to the operator backend: a
// persistent TCP link, an MQTT broker and a Redis server. Each link is a
// telemetry sink and a command source.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"codeberg.org/mutker/chargectl/internal/telemetry"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 2 * time.Second
	defaultMinBackoff   = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

type TCPConfig struct {
	Address string
	// Reconnect redials with capped exponential backoff after the link
	// drops. Without it the first failure closes the link for good.
	Reconnect    bool
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	Clock        clock.Clock
	Logger       logger.Logger
}

// TCPLink is the operator socket. Telemetry records go out as JSON
// objects; command frames come back as three bytes.
type TCPLink struct {
	cfg    TCPConfig
	dialer net.Dialer

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func NewTCPLink(cfg TCPConfig) *TCPLink {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.MinBackoff)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	return &TCPLink{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

func (l *TCPLink) Name() string {
	return "tcp"
}

// Connected reports whether the socket is currently up.
func (l *TCPLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Publish writes rec to the socket. Records produced while the link is down
// are dropped.
func (l *TCPLink) Publish(_ context.Context, rec state.TelemetryRecord) error {
	errFactory := errors.New()

	b, err := telemetry.Encode(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return errFactory.New(ErrNotConnected)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil {
		l.drop(conn, err)
		return errFactory.Wrap(ErrSendFailed, err)
	}
	if _, err := conn.Write(b); err != nil {
		l.drop(conn, err)
		return errFactory.Wrap(ErrSendFailed, err)
	}

	return nil
}

// ReceiveCommand blocks until a full command frame arrives, dialing the
// server first if the link is down.
func (l *TCPLink) ReceiveCommand(ctx context.Context) ([]byte, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	frame := make([]byte, command.FrameSize)
	if _, err := io.ReadFull(conn, frame); err != nil {
		if ctx.Err() != nil {
			_ = conn.SetReadDeadline(time.Time{})
			return nil, ctx.Err()
		}
		l.drop(conn, err)
		return nil, errors.New().Wrap(ErrReceive, err)
	}

	return frame, nil
}

func (l *TCPLink) connect(ctx context.Context) (net.Conn, error) {
	errFactory := errors.New()

	l.mu.Lock()
	if l.conn != nil {
		conn := l.conn
		l.mu.Unlock()
		return conn, nil
	}
	if l.closed {
		l.mu.Unlock()
		return nil, errFactory.New(command.ErrSourceClosed)
	}
	l.mu.Unlock()

	backoff := l.cfg.MinBackoff
	for attempt := 1; ; attempt++ {
		conn, err := l.dialer.DialContext(ctx, "tcp", l.cfg.Address)
		if err == nil {
			l.mu.Lock()
			if l.closed {
				l.mu.Unlock()
				_ = conn.Close()
				return nil, errFactory.New(command.ErrSourceClosed)
			}
			l.conn = conn
			l.mu.Unlock()

			l.cfg.Logger.Info().
				Str("address", l.cfg.Address).
				Int("attempt", attempt).
				Msg("Connected to operator server")
			return conn, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !l.cfg.Reconnect {
			l.markClosed()
			return nil, errFactory.Wrap(ErrDialFailed, err)
		}

		l.cfg.Logger.Warn().
			Err(err).
			Str("address", l.cfg.Address).
			Dur("retry_in", backoff).
			Msg("Failed to connect to operator server")

		if err := l.cfg.Clock.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = min(backoff*2, l.cfg.MaxBackoff)
	}
}

// drop discards conn after an I/O error unless it was already replaced.
func (l *TCPLink) drop(conn net.Conn, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != conn {
		return
	}
	_ = conn.Close()
	l.conn = nil
	if !l.cfg.Reconnect {
		l.closed = true
	}

	l.cfg.Logger.Warn().Err(cause).Str("address", l.cfg.Address).Msg("Operator connection lost")
}

func (l *TCPLink) markClosed() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Close shuts the socket and stops further dialing.
func (l *TCPLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
