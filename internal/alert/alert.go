// Package alert implements alert dispatching to multiple sinks: an
// execution failure or a lost-worker detection is rendered as a
// types.Alert and handed to every configured sink.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends an alert to all configured sinks. A sink failing never
// stops delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Error("alert: sink delivery failed", "sink", sink.Name(), "error", err)
		}
	}
}

// AlertFn adapts the dispatcher to the func(types.Alert) shape the
// executor and lost-worker scan call their alert hooks with, mirroring
// the teacher's engine.alertFn callback (internal/engine.New's alertFn
// parameter, fed by dispatcher.AlertFunc() in internal/commands).
func (d *Dispatcher) AlertFn(alert types.Alert) {
	d.Dispatch(context.Background(), alert)
}

// AlertFunc returns d.AlertFn as a func(types.Alert) value.
func (d *Dispatcher) AlertFunc() func(types.Alert) {
	return d.AlertFn
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
