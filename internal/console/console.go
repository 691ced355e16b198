// Package console is the interactive operator prompt enabled with
// --console. It reads commands with readline and keeps log lines from
// tearing the prompt.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"codeberg.org/mutker/chargectl/internal/telemetry"
	"github.com/chzyer/readline"
)

// Source names console commands in logs and the journal.
const Source = "console"

const helpText = `Commands:
  status               show channel, temperature, relay and fan state
  relay <n> on|off     switch the discharge relay of channel n
  send <frame>         apply a raw three-byte command frame, e.g. 101
  help                 show this help
  quit                 stop the controller`

type Config struct {
	Handler     *command.Handler
	Store       *state.Store
	Clock       clock.Clock
	HistoryFile string
}

type Console struct {
	cfg Config
	out io.Writer
}

func New(cfg Config) *Console {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Console{cfg: cfg, out: os.Stdout}
}

// readlineWriter clears the prompt around each log line.
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (int, error) {
	w.rl.Clean()
	n, err := w.rl.Stderr().Write(p)
	w.rl.Refresh()
	return n, err
}

// Run reads commands until ctx is done, the operator quits or input ends.
// Quitting or pressing Ctrl+C calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "chargectl> ",
		HistoryFile: c.cfg.HistoryFile,
	})
	if err != nil {
		return errors.New().Wrap(ErrInitConsole, err)
	}
	c.out = rl.Stdout()

	logger.SetOutput(&readlineWriter{rl: rl})
	defer logger.SetOutput(os.Stdout)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := rl.Readline()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer rl.Close()

	fmt.Fprintln(c.out, "Operator console ready (type 'help' for commands)")

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if errors.Is(err, readline.ErrInterrupt) {
						cancel()
					}
				default:
				}
				return nil
			}
			if c.Execute(ctx, line) {
				cancel()
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the operator asked to
// quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "status":
		c.printStatus()
	case "relay":
		c.relay(ctx, fields[1:])
	case "send":
		c.send(ctx, fields[1:])
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (try 'help')\n", fields[0])
	}
	return false
}

func (c *Console) printStatus() {
	rec := c.cfg.Store.Snapshot(c.cfg.Clock.Now())
	for _, id := range state.Channels() {
		v := telemetry.View(rec, id)
		fmt.Fprintf(c.out, "%s  mode=%-8s duty=%3d%% soc=%3d%%  %sV %smA  %s°C  relay=%s fan=%d%%\n",
			id, state.Mode(v.ChargeMode), v.DutyCycle, v.SoC, v.Voltage, v.Current, v.Temperature,
			onOff(v.RelayState == 1), v.FanPWM)
	}

	temps := make([]string, 0, state.NumChannels)
	for _, t := range rec.Temperatures.Resistor {
		temps = append(temps, telemetry.Fixed2(t).String())
	}
	fmt.Fprintf(c.out, "resistors  %s°C  fan=%d%%\n", strings.Join(temps, "/"), rec.Fans.Resistor)
}

func (c *Console) relay(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: relay <n> on|off")
		return
	}

	n, err := strconv.Atoi(args[0])
	ch := state.ChannelID(n)
	if err != nil || !ch.Valid() {
		fmt.Fprintf(c.out, "Invalid channel: %s (1-%d)\n", args[0], state.NumChannels)
		return
	}

	var on bool
	switch args[1] {
	case "on", "1":
		on = true
	case "off", "0":
	default:
		fmt.Fprintf(c.out, "Invalid relay state: %s (on|off)\n", args[1])
		return
	}

	if err := c.cfg.Handler.SetRelay(ctx, ch, on, Source); err != nil {
		fmt.Fprintf(c.out, "Failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s relay %s\n", ch, onOff(on))
}

func (c *Console) send(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: send <frame>")
		return
	}

	d, err := c.cfg.Handler.Apply(ctx, []byte(args[0]), Source)
	if err != nil {
		fmt.Fprintf(c.out, "Failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Applied %d change(s), %d invalid byte(s)\n", len(d.Changes), len(d.Invalid))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// DefaultHistoryFile returns the history path under the user cache
// directory, or "" when there is none.
func DefaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "chargectl")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "console_history")
}
