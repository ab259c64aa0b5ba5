package wire

import (
	"bytes"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	ka := Keepalive{Timeout: 200 * time.Millisecond}

	frame, err := EncodeFrame(ka.Words())
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	words, err := DecodeFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	msgType, err := PeekMessageType(words)
	if err != nil {
		t.Fatalf("PeekMessageType: %v", err)
	}
	if msgType != MessageKeepalive {
		t.Errorf("type = %v, want KEEPALIVE", msgType)
	}

	decoded, err := DecodeKeepalive(words)
	if err != nil {
		t.Fatalf("DecodeKeepalive: %v", err)
	}
	if decoded.Timeout != 200*time.Millisecond {
		t.Errorf("timeout = %v, want 200ms", decoded.Timeout)
	}
}

func TestDecodeFrameRejectsBadLength(t *testing.T) {
	// Length prefix claiming a non-word-aligned payload.
	frame := []byte{0, 0, 0, 3, 1, 2, 3}
	if _, err := DecodeFrame(bytes.NewReader(frame)); err == nil {
		t.Error("non-aligned frame accepted, want error")
	}

	// Empty payload.
	frame = []byte{0, 0, 0, 0}
	if _, err := DecodeFrame(bytes.NewReader(frame)); err == nil {
		t.Error("empty frame accepted, want error")
	}

	// Oversized payload.
	frame = []byte{0, 1, 0, 0}
	if _, err := DecodeFrame(bytes.NewReader(frame)); err == nil {
		t.Error("oversized frame accepted, want error")
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	msg := ControlMessage{
		Kind:   ControlJoint,
		Target: Vector6D{0, -1.57, 1.57, -1.57, -1.57, 0},
	}

	decoded, err := DecodeControlMessage(msg.Words())
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if decoded.Kind != ControlJoint {
		t.Errorf("kind = %v, want JOINT", decoded.Kind)
	}
	for i := range msg.Target {
		if diff := decoded.Target[i] - msg.Target[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("target[%d] = %v, want %v", i, decoded.Target[i], msg.Target[i])
		}
	}
}

func TestSelectionWords(t *testing.T) {
	s := Selection{false, false, true, false, false, true}
	want := [6]int32{0, 0, 1, 0, 0, 1}
	if got := s.Words(); got != want {
		t.Errorf("Words() = %v, want %v", got, want)
	}

	if _, err := selectionFromWords([]int32{0, 0, 2, 0, 0, 0}); err == nil {
		t.Error("selection word 2 accepted, want error")
	}
}
