package printer

import (
	"errors"
	"fmt"
)

// Platform errors. Bindings wrap these so the manager can pick the right code.
var (
	ErrBluetoothDisabled = errors.New("bluetooth adapter is off")
	ErrPermissionDenied  = errors.New("bluetooth permission denied")
	ErrDeviceNotFound    = errors.New("bluetooth device not found")
	ErrNotConnected      = errors.New("printer not connected")
	ErrNotSupported      = errors.New("operation not supported on this platform")
)

// Code identifies a printer failure
type Code string

const (
	CodeBluetoothDisabled Code = "BLUETOOTH_DISABLED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeDeviceNotFound    Code = "DEVICE_NOT_FOUND"
	CodeConnectionFailed  Code = "CONNECTION_FAILED"
	CodeConnectionLost    Code = "CONNECTION_LOST"
	CodeScanFailed        Code = "SCAN_FAILED"
	CodeUnpairFailed      Code = "UNPAIR_FAILED"
	CodeUnknown           Code = "UNKNOWN"
)

var messages = map[Code]string{
	CodeBluetoothDisabled: "Bluetooth is turned off. Turn it on and try again.",
	CodePermissionDenied:  "Bluetooth permission was not granted.",
	CodeDeviceNotFound:    "No printer selected or the printer was not found.",
	CodeConnectionFailed:  "Could not connect to the printer. Make sure it is on and nearby.",
	CodeConnectionLost:    "Connection to the printer was lost.",
	CodeScanFailed:        "Scanning for Bluetooth devices failed.",
	CodeUnpairFailed:      "Could not remove the printer pairing.",
	CodeUnknown:           "Printing failed.",
}

// Message is the user-facing text for the code
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CodeUnknown]
}

// Error is the only error shape that leaves the connection manager and the
// print executor
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds an Error with the code's default message
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Message: code.Message(), Err: err}
}

// CodeOf returns the code carried by err, or CodeUnknown
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// wrap converts a platform error into an *Error. Sentinel errors refine the
// fallback code; an existing *Error is returned unchanged.
func wrap(fallback Code, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	code := fallback
	switch {
	case errors.Is(err, ErrBluetoothDisabled):
		code = CodeBluetoothDisabled
	case errors.Is(err, ErrPermissionDenied):
		code = CodePermissionDenied
	case errors.Is(err, ErrDeviceNotFound):
		code = CodeDeviceNotFound
	case errors.Is(err, ErrNotConnected):
		code = CodeConnectionLost
	}
	return NewError(code, err)
}
