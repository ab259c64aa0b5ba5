// Package rtde implements the real-time data exchange negotiation
// channel.
//
// Before the control script starts streaming, the client and the
// controller agree on a recipe: the ordered list of named fields
// exchanged in each direction. The negotiation runs over a binary
// packet protocol (uint16 size, uint8 type header, big-endian): the
// client proposes a protocol version, queries the controller version
// and kinematics checksum, registers the input and output recipes and
// finally starts the exchange.
//
// A recipe field the controller does not know is a deployment error,
// surfaced during setup, never at runtime.
package rtde
