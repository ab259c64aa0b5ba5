// Package dashboard implements the supervisory control-plane client.
//
// The dashboard is a line-oriented text protocol on TCP port 29999 used
// for coarse commands: stopping a running program, powering the arm on
// and off, and releasing the brakes. It is distinct from the real-time
// channels and stays available while no control script is running.
//
// Every command is synchronous: it sends one line, waits for one
// response line within a bounded timeout and matches it against the
// expected acknowledgement. The client never retries on its own;
// failure policy belongs to the caller.
package dashboard
