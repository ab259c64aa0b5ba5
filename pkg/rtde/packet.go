package rtde

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PacketType identifies a negotiation packet. Values follow the ASCII
// mnemonics of the protocol.
type PacketType uint8

const (
	// PacketRequestProtocolVersion proposes a protocol version ('V').
	PacketRequestProtocolVersion PacketType = 86

	// PacketGetControllerVersion queries the firmware version ('v').
	PacketGetControllerVersion PacketType = 118

	// PacketGetKinematicsInfo queries the kinematic calibration
	// checksum ('K').
	PacketGetKinematicsInfo PacketType = 75

	// PacketSetupOutputs registers the robot-to-client recipe ('O').
	PacketSetupOutputs PacketType = 79

	// PacketSetupInputs registers the client-to-robot recipe ('I').
	PacketSetupInputs PacketType = 73

	// PacketStart starts the data exchange ('S').
	PacketStart PacketType = 83

	// PacketPause pauses the data exchange ('P').
	PacketPause PacketType = 80
)

// String returns the packet type name.
func (t PacketType) String() string {
	switch t {
	case PacketRequestProtocolVersion:
		return "REQUEST_PROTOCOL_VERSION"
	case PacketGetControllerVersion:
		return "GET_CONTROLLER_VERSION"
	case PacketGetKinematicsInfo:
		return "GET_KINEMATICS_INFO"
	case PacketSetupOutputs:
		return "SETUP_OUTPUTS"
	case PacketSetupInputs:
		return "SETUP_INPUTS"
	case PacketStart:
		return "START"
	case PacketPause:
		return "PAUSE"
	default:
		return "UNKNOWN"
	}
}

// Packet framing constants.
const (
	// headerSize is size (uint16) plus type (uint8).
	headerSize = 3

	// maxPacketSize bounds a single negotiation packet.
	maxPacketSize = 4096
)

// Packet errors.
var (
	ErrPacketTooLarge = errors.New("packet too large")
	ErrPacketShort    = errors.New("packet shorter than header")
)

// writePacket writes one packet: uint16 total size, uint8 type, payload.
func writePacket(w io.Writer, t PacketType, payload []byte) error {
	total := headerSize + len(payload)
	if total > maxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, total)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf, uint16(total))
	buf[2] = byte(t)
	copy(buf[headerSize:], payload)

	_, err := w.Write(buf)
	return err
}

// readPacket reads one packet and returns its type and payload.
func readPacket(r io.Reader) (PacketType, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	total := binary.BigEndian.Uint16(header[:])
	if total < headerSize {
		return 0, nil, fmt.Errorf("%w: size %d", ErrPacketShort, total)
	}
	if total > maxPacketSize {
		return 0, nil, fmt.Errorf("%w: size %d", ErrPacketTooLarge, total)
	}

	payload := make([]byte, total-headerSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return PacketType(header[2]), payload, nil
}
