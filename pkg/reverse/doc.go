// Package reverse implements the reverse control channel server.
//
// The deployed control script dials back to this client once it starts
// executing on the controller. The server accepts that single
// connection and treats it as the authoritative program-state signal:
// accept means the script is running, connection loss means it is not.
// The registered state callback is invoked from the server's accept
// goroutine; waiters belong in the session layer.
//
// All outgoing commands - keepalives, mode start/end, direct control
// messages - are written to the connected script as wire frames. A
// write with no script connected fails immediately, which is what
// enforces the "no command before the script is confirmed running"
// contract at the lowest level.
package reverse
