package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes session events to an slog.Logger.
// Useful for development when you want to see session events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors are logged at Warn
// level, everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RobotAddr != "" {
		attrs = append(attrs, slog.String("robot", event.RobotAddr))
	}

	level := slog.LevelDebug
	msg := "session event"

	switch {
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("command", event.Command.Name),
			slog.Bool("success", event.Command.Success),
		)
		if event.Command.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Command.Detail))
		}
		msg = "command"
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("from", event.StateChange.From),
			slog.String("to", event.StateChange.To),
		)
		msg = "state change"
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Frame.MessageType),
			slog.Int("words", event.Frame.Words),
		)
		msg = "frame"
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		level = slog.LevelWarn
		msg = "session error"
	}

	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
