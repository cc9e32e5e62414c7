package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-request-client/pkg/httpclient"
)

// Fanout dispatches notices to all configured sinks. It satisfies httpclient.Notifier.
type Fanout struct {
	sinks []Sink
	log   Logger
}

// NewFanout builds a dispatcher that fans out notices across sinks.
func NewFanout(sinks []Sink, log Logger) *Fanout {
	cp := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cp = append(cp, s)
	}
	return &Fanout{sinks: cp, log: ensureLogger(log)}
}

// Send forwards the notice to every sink.
// It returns the number of sinks that successfully handled the notice.
func (f *Fanout) Send(ctx context.Context, n httpclient.Notice) (int, error) {
	if f == nil || len(f.sinks) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, s := range f.sinks {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s notifier[%s]: %w", s.Type(), s.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Notify sends n and logs delivery failures; it never fails the caller.
func (f *Fanout) Notify(ctx context.Context, n httpclient.Notice) {
	if f == nil {
		return
	}
	delivered, err := f.Send(ctx, n)
	if err != nil {
		f.log.WarnObj("notice delivery failed", "notify_error", map[string]any{
			"level":     n.Level,
			"delivered": delivered,
			"sinks":     len(f.sinks),
			"error":     err.Error(),
		})
	}
}

// Size returns the number of active sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks holding connections (Pub/Sub clients).
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close notifier[%s]: %w", s.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
