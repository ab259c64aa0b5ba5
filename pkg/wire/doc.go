// Package wire defines the binary wire format for the reverse control
// channel between this client and the control script running on the
// robot controller.
//
// Every message is a length-prefixed frame whose payload is a sequence
// of signed 32-bit big-endian words. The first word identifies the
// message type. Real-valued parameters are scaled by a fixed multiplier
// to integer words, matching what the control script decodes.
//
// # Force mode
//
// The force-mode start command exists in two shapes, selected by the
// controller firmware's major version:
//   - ForceModeCommandV3: six parameter groups, no gain scaling.
//     Firmware before major version 5 rejects frames carrying extra
//     words, so the field is structurally absent from this variant.
//   - ForceModeCommandV5: the same six groups plus gain scaling.
//
// The two shapes are distinct types rather than one struct with an
// optional field so that "absent" and "zero" cannot be confused.
package wire
