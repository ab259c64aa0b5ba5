// Package session implements the control session state machine.
//
// A ControlSession owns one supervisory (dashboard) connection, one
// recipe negotiation (rtde) client and one reverse channel server, and
// drives them through the fixed startup sequence: connect, stop any
// running program, optional power-up policy, deploy the control script,
// negotiate recipes, verify calibration, then wait for the script to
// confirm execution by dialing back.
//
// Once the script is confirmed running the robot enforces liveness:
// keepalive frames must keep arriving or the controller drops the
// connection as a safety measure. The session exposes WriteKeepalive
// for caller-driven loops and a Heartbeat runner for callers that want
// a cancellable background task. The maximum safe send interval is
// half the configured robot read timeout.
//
// Force mode is the one built-in motion mode: at most one mode is
// active per session, and the start command's wire shape is selected
// from the controller's firmware version exactly once per call.
package session
