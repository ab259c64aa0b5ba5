package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func writeEvents(t *testing.T, events []Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.clog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close logger: %v", err)
	}
	return path
}

func testEvents(base time.Time) []Event {
	return []Event{
		{
			Timestamp: base,
			SessionID: "session-a",
			Direction: DirectionOut,
			Layer:     LayerDashboard,
			Category:  CategoryCommand,
			Command:   &CommandEvent{Name: "stop", Success: true},
		},
		{
			Timestamp:   base.Add(time.Second),
			SessionID:   "session-a",
			Direction:   DirectionIn,
			Layer:       LayerReverse,
			Category:    CategoryStateChange,
			StateChange: &StateChangeEvent{From: "NOT_RUNNING", To: "RUNNING"},
		},
		{
			Timestamp: base.Add(2 * time.Second),
			SessionID: "session-b",
			Direction: DirectionOut,
			Layer:     LayerSession,
			Category:  CategoryError,
			Error:     &ErrorEventData{Message: "boom"},
		},
	}
}

func TestReaderAll(t *testing.T) {
	path := writeEvents(t, testEvents(time.Now()))

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read event %d: %v", count, err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("read %d events, want 3", count)
	}
}

func TestReaderFilterBySession(t *testing.T) {
	path := writeEvents(t, testEvents(time.Now()))

	reader, err := NewFilteredReader(path, Filter{SessionID: "session-a"})
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if event.SessionID != "session-a" {
			t.Errorf("filter leaked event for %q", event.SessionID)
		}
		count++
	}
	if count != 2 {
		t.Errorf("read %d events, want 2", count)
	}
}

func TestReaderFilterByCategoryAndTime(t *testing.T) {
	base := time.Now()
	path := writeEvents(t, testEvents(base))

	category := CategoryError
	start := base.Add(1500 * time.Millisecond)
	reader, err := NewFilteredReader(path, Filter{
		Category:  &category,
		TimeStart: &start,
	})
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Error == nil || event.Error.Message != "boom" {
		t.Errorf("event = %+v, want the error event", event)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("second read err = %v, want EOF", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.clog")); err == nil {
		t.Fatal("NewReader succeeded for a missing file")
	}
}
