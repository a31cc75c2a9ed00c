package alert

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// ConsoleSink writes alerts to the terminal.
type ConsoleSink struct{}

// NewConsoleSink creates a new console alert sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert to the terminal with a severity prefix.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = "[ERROR]"
	case types.AlertLevelWarning:
		prefix = "[WARN]"
	default:
		prefix = "[INFO]"
	}

	if alert.Diagnostic != "" {
		fmt.Printf("%s [%s] %s\n", prefix, alert.Diagnostic, alert.Message)
	} else {
		fmt.Printf("%s %s\n", prefix, alert.Message)
	}
	return nil
}
