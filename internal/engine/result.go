package engine

import "fmt"

// Result is the structured outcome of an engine operation. Operations
// never panic or return raw errors to the presentation layer; declined
// preconditions and internal faults both surface here, distinguished only
// by the message.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func ok(format string, args ...interface{}) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...interface{}) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Messages for the shared decline cases.
const (
	msgNoRoom       = "You do not have an active temporary voice channel."
	msgRoomVanished = "Your temporary voice channel no longer exists."
	msgUserNotFound = "User not found."
)
