package quizsync

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Protocol Errors (from server error responses)
	ErrorUnknown ErrorCode = iota
	ErrorRoomNotFound
	ErrorRoomFull
	ErrorGameInProgress
	ErrorNotHost
	ErrorInvalidAnswer
	ErrorPlayerNotFound
	ErrorBadRequest
	ErrorInternalServer

	// Client-side Errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorInvalidConfig
	ErrorNotConnected
	ErrorAlreadyConnected
	ErrorSerialization
	ErrorInvalidMessage
	ErrorNoRoom
	ErrorNoQuestion
	ErrorAlreadyAnswered
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorRoomNotFound:
		return "room_not_found"
	case ErrorRoomFull:
		return "room_full"
	case ErrorGameInProgress:
		return "game_in_progress"
	case ErrorNotHost:
		return "not_host"
	case ErrorInvalidAnswer:
		return "invalid_answer"
	case ErrorPlayerNotFound:
		return "player_not_found"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorInternalServer:
		return "internal_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorAlreadyConnected:
		return "already_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorNoRoom:
		return "no_room"
	case ErrorNoQuestion:
		return "no_question"
	case ErrorAlreadyAnswered:
		return "already_answered"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a protocol error code string to ErrorCode.
func ParseErrorCode(code string) ErrorCode {
	switch code {
	case "room_not_found":
		return ErrorRoomNotFound
	case "room_full":
		return ErrorRoomFull
	case "game_in_progress":
		return ErrorGameInProgress
	case "not_host":
		return ErrorNotHost
	case "invalid_answer":
		return ErrorInvalidAnswer
	case "player_not_found":
		return ErrorPlayerNotFound
	case "bad_request":
		return ErrorBadRequest
	case "internal_error":
		return ErrorInternalServer
	default:
		return ErrorUnknown
	}
}

// QuizError is a structured error with code and context.
type QuizError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *QuizError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *QuizError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface for error comparison.
func (e *QuizError) Is(target error) bool {
	t, ok := target.(*QuizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new QuizError with the given code and message.
func NewError(code ErrorCode, message string) *QuizError {
	return &QuizError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a QuizError.
func WrapError(code ErrorCode, message string, err error) *QuizError {
	return &QuizError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// FromProtocolError converts a protocol Error to QuizError.
func FromProtocolError(e *Error) *QuizError {
	if e == nil {
		return nil
	}
	return &QuizError{
		Code:    ParseErrorCode(e.Code),
		Message: e.Msg,
	}
}

// IsProtocolError checks if an error is a protocol error (from server).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuizError
	if !errors.As(err, &qe) {
		return false
	}
	// Protocol errors are those that come from the server
	return qe.Code >= ErrorRoomNotFound && qe.Code <= ErrorInternalServer
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuizError
	if !errors.As(err, &qe) {
		return false
	}
	return qe.Code == ErrorConnection || qe.Code == ErrorDisconnected || qe.Code == ErrorTimeout
}

// IsPreconditionError checks if an error is a local command guard rejection.
// These are benign no-ops, never fatal to the session.
func IsPreconditionError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuizError
	if !errors.As(err, &qe) {
		return false
	}
	switch qe.Code {
	case ErrorNotConnected, ErrorNoRoom, ErrorNoQuestion, ErrorAlreadyAnswered:
		return true
	default:
		return false
	}
}
