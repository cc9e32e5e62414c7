package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-request-client/pkg/httpclient"
)

// ConsoleSink prints notices for the person running the tool.
type ConsoleSink struct {
	id string
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink writes notices to w (stderr when nil).
func NewConsoleSink(id string, w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	if id == "" {
		id = TypeConsole
	}
	return &ConsoleSink{id: id, w: w}
}

func newConsoleSinkFromConfig(_ context.Context, cfg SinkConfig, _ Logger) (Sink, error) {
	w := io.Writer(os.Stderr)
	if cfg.Console != nil && cfg.Console.Stream == "stdout" {
		w = os.Stdout
	}
	return NewConsoleSink(cfg.ID, w), nil
}

func (c *ConsoleSink) ID() string   { return c.id }
func (c *ConsoleSink) Type() string { return TypeConsole }

// Send writes one line: "[level] message", with the rsCode when present.
func (c *ConsoleSink) Send(_ context.Context, n httpclient.Notice) error {
	line := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Level)), n.Message)
	if n.Code != 0 {
		line = fmt.Sprintf("%s (rsCode=%d)", line, n.Code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		return fmt.Errorf("write console notice: %w", err)
	}
	return nil
}
