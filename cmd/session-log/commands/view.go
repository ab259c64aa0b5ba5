// Package commands implements the session-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/urcontrol/urcl-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	SessionID string
}

// RunView reads the log file and writes matching events to w in
// human-readable form.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Layer:     filter.Layer,
		Direction: filter.Direction,
		Category:  filter.Category,
		SessionID: filter.SessionID,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		formatEvent(w, event)
	}
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	sessionID := shortenSessionID(event.SessionID)

	var typeLabel string
	switch {
	case event.Command != nil:
		typeLabel = event.Command.Name
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Frame != nil:
		typeLabel = event.Frame.MessageType
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [session:%s] %-3s %s %s\n", ts, sessionID, event.Direction, event.Layer, typeLabel)

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		fmt.Fprintf(w, "  %s -> %s\n", event.StateChange.From, event.StateChange.To)
	case event.Frame != nil:
		fmt.Fprintf(w, "  Words: %d\n", event.Frame.Words)
	case event.Error != nil:
		fmt.Fprintf(w, "  %s\n", event.Error.Message)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	outcome := "ok"
	if !cmd.Success {
		outcome = "FAILED"
	}
	fmt.Fprintf(w, "  Result: %s\n", outcome)
	if cmd.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", cmd.Detail)
	}
}

// ParseLayerFlag parses a layer name from a command-line flag.
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "dashboard":
		return log.LayerDashboard, nil
	case "rtde":
		return log.LayerRTDE, nil
	case "reverse":
		return log.LayerReverse, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("unknown layer %q (dashboard, rtde, reverse, session)", s)
	}
}

// ParseDirectionFlag parses a direction name from a command-line flag.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (in, out)", s)
	}
}

// ParseCategoryFlag parses a category name from a command-line flag.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "state":
		return log.CategoryStateChange, nil
	case "frame":
		return log.CategoryFrame, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (command, state, frame, error)", s)
	}
}
