package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// MessageType identifies the payload of a reverse-channel frame.
// It is always the first word of the frame payload.
type MessageType int32

const (
	// MessageKeepalive is the periodic liveness signal. The control
	// script drops the connection if none arrives within its read
	// timeout budget.
	MessageKeepalive MessageType = 1

	// MessageControl carries a direct joint/cartesian/freedrive command.
	MessageControl MessageType = 2

	// MessageForceModeStart starts force mode with the parameters that
	// follow in the frame.
	MessageForceModeStart MessageType = 3

	// MessageForceModeEnd ends force mode. No parameters.
	MessageForceModeEnd MessageType = 4
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageKeepalive:
		return "KEEPALIVE"
	case MessageControl:
		return "CONTROL"
	case MessageForceModeStart:
		return "FORCE_MODE_START"
	case MessageForceModeEnd:
		return "FORCE_MODE_END"
	default:
		return "UNKNOWN"
	}
}

// Framing constants.
const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 4

	// WordSize is the size of one payload word in bytes.
	WordSize = 4

	// MaxFrameWords bounds the payload of a single frame. The largest
	// legal message is a V5 force-mode start (28 words); anything near
	// the bound indicates a corrupted stream.
	MaxFrameWords = 64
)

// Framing errors.
var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrFrameEmpty    = errors.New("frame has no payload")
)

// Command is a message that can be encoded onto the reverse channel.
type Command interface {
	// Type returns the frame's message type.
	Type() MessageType

	// Words returns the complete frame payload including the leading
	// message-type word.
	Words() []int32
}

// EncodeFrame serializes a payload of words into a length-prefixed frame.
func EncodeFrame(words []int32) ([]byte, error) {
	if len(words) == 0 {
		return nil, ErrFrameEmpty
	}
	if len(words) > MaxFrameWords {
		return nil, fmt.Errorf("%w: %d words", ErrFrameTooLarge, len(words))
	}

	buf := make([]byte, LengthPrefixSize+len(words)*WordSize)
	binary.BigEndian.PutUint32(buf, uint32(len(words)*WordSize))
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[LengthPrefixSize+i*WordSize:], uint32(w))
	}
	return buf, nil
}

// DecodeFrame reads one length-prefixed frame from r and returns its
// payload words. It blocks until a full frame is available or r fails.
func DecodeFrame(r io.Reader) ([]int32, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, ErrFrameEmpty
	}
	if length%WordSize != 0 {
		return nil, fmt.Errorf("frame length %d is not word-aligned", length)
	}
	if length > MaxFrameWords*WordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}

	words := make([]int32, length/WordSize)
	for i := range words {
		words[i] = int32(binary.BigEndian.Uint32(raw[i*WordSize:]))
	}
	return words, nil
}

// PeekMessageType returns the message type of a decoded frame payload.
func PeekMessageType(words []int32) (MessageType, error) {
	if len(words) == 0 {
		return 0, ErrFrameEmpty
	}
	t := MessageType(words[0])
	switch t {
	case MessageKeepalive, MessageControl, MessageForceModeStart, MessageForceModeEnd:
		return t, nil
	default:
		return 0, fmt.Errorf("unknown message type %d", words[0])
	}
}

// Keepalive is the periodic liveness message. Timeout is the read
// timeout budget granted to the robot side, carried in every frame so
// the script never has to hardcode it.
type Keepalive struct {
	Timeout time.Duration
}

// Type returns MessageKeepalive.
func (k Keepalive) Type() MessageType { return MessageKeepalive }

// Words returns the frame payload.
func (k Keepalive) Words() []int32 {
	return []int32{int32(MessageKeepalive), int32(k.Timeout / time.Millisecond)}
}

// DecodeKeepalive decodes a keepalive frame payload.
func DecodeKeepalive(words []int32) (Keepalive, error) {
	if len(words) != 2 || MessageType(words[0]) != MessageKeepalive {
		return Keepalive{}, fmt.Errorf("not a keepalive frame")
	}
	return Keepalive{Timeout: time.Duration(words[1]) * time.Millisecond}, nil
}

// ControlKind identifies the target interpretation of a ControlMessage.
type ControlKind int32

const (
	// ControlNoop holds the current target without commanding motion.
	ControlNoop ControlKind = 0

	// ControlJoint commands a joint-space target.
	ControlJoint ControlKind = 1

	// ControlCartesian commands a cartesian pose target.
	ControlCartesian ControlKind = 2

	// ControlFreedriveStart enables freedrive.
	ControlFreedriveStart ControlKind = 3

	// ControlFreedriveStop disables freedrive.
	ControlFreedriveStop ControlKind = 4
)

// String returns the control kind name.
func (k ControlKind) String() string {
	switch k {
	case ControlNoop:
		return "NOOP"
	case ControlJoint:
		return "JOINT"
	case ControlCartesian:
		return "CARTESIAN"
	case ControlFreedriveStart:
		return "FREEDRIVE_START"
	case ControlFreedriveStop:
		return "FREEDRIVE_STOP"
	default:
		return "UNKNOWN"
	}
}

// ControlMessage is a direct command sent outside any named mode.
// Target is ignored for freedrive and noop kinds.
type ControlMessage struct {
	Kind   ControlKind
	Target Vector6D
}

// Type returns MessageControl.
func (m ControlMessage) Type() MessageType { return MessageControl }

// Words returns the frame payload.
func (m ControlMessage) Words() []int32 {
	words := make([]int32, 0, 8)
	words = append(words, int32(MessageControl), int32(m.Kind))
	target := m.Target.Words()
	words = append(words, target[:]...)
	return words
}

// DecodeControlMessage decodes a control frame payload.
func DecodeControlMessage(words []int32) (ControlMessage, error) {
	if len(words) != 8 || MessageType(words[0]) != MessageControl {
		return ControlMessage{}, fmt.Errorf("not a control frame")
	}
	target, err := vectorFromWords(words[2:8])
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Kind: ControlKind(words[1]), Target: target}, nil
}

// ForceModeEnd ends the active force mode.
type ForceModeEnd struct{}

// Type returns MessageForceModeEnd.
func (ForceModeEnd) Type() MessageType { return MessageForceModeEnd }

// Words returns the frame payload.
func (ForceModeEnd) Words() []int32 { return []int32{int32(MessageForceModeEnd)} }
