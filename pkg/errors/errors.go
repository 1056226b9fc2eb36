// Package errors defines the coded error type shared by pza packages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode names a failure class. Tests and the CLI branch on codes,
// never on message text.
type ErrorCode string

// Codes in use across pza. The registry has none: a missing callback id
// is reported as false, not as an error.
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigWrite ErrorCode = "CONFIG_WRITE"
	ErrConfigWatch ErrorCode = "CONFIG_WATCH"

	// FileSystem errors
	ErrDirCreate    ErrorCode = "DIR_CREATE"
	ErrHomeNotFound ErrorCode = "HOME_NOT_FOUND"

	// MQTT errors
	ErrMqttConnect   ErrorCode = "MQTT_CONNECT"
	ErrMqttSubscribe ErrorCode = "MQTT_SUBSCRIBE"
	ErrMqttPublish   ErrorCode = "MQTT_PUBLISH"
	ErrBrokerStart   ErrorCode = "BROKER_START"
)

// PzaError is the error type every pza package returns. Message says what
// failed in this layer, Wrapped holds the cause from the layer below
// (a koanf parse error or a paho token error, for instance).
type PzaError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error renders "[CODE] message: cause"
func (e *PzaError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *PzaError) Unwrap() error {
	return e.Wrapped
}

// Is matches any PzaError carrying the same code
func (e *PzaError) Is(target error) bool {
	var targetErr *PzaError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New returns an error with no underlying cause, such as a validation failure
func New(code ErrorCode, message string) *PzaError {
	return &PzaError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf is New with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *PzaError {
	return &PzaError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap attaches a code and message to err. Wrapping nil returns a nil
// error interface, so `return errors.Wrap(err, ...)` is safe unguarded.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &PzaError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf is Wrap with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &PzaError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail records a key/value for logs, e.g. the listener id or topic
func (e *PzaError) WithDetail(key string, value interface{}) *PzaError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails merges several details at once
func (e *PzaError) WithDetails(details map[string]interface{}) *PzaError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode reports whether the outermost PzaError in err's chain has code
func IsErrorCode(err error, code ErrorCode) bool {
	var pzaErr *PzaError
	if errors.As(err, &pzaErr) {
		return pzaErr.Code == code
	}
	return false
}

// GetErrorCode returns the outermost code, or ErrUnknown for foreign errors
func GetErrorCode(err error) ErrorCode {
	var pzaErr *PzaError
	if errors.As(err, &pzaErr) {
		return pzaErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the outermost details, or nil for foreign errors
func GetErrorDetails(err error) map[string]interface{} {
	var pzaErr *PzaError
	if errors.As(err, &pzaErr) {
		return pzaErr.Details
	}
	return nil
}
