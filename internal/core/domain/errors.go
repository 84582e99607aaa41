package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUpload            = errors.New("upload failed")
	ErrTimeout           = errors.New("timed out")
	ErrProtocol          = errors.New("invalid server response")
	ErrPoll              = errors.New("status poll failed")
	ErrChat              = errors.New("chat request rejected")
	ErrServer            = errors.New("server unreachable")
	ErrBusy              = errors.New("request already in flight")
	ErrGated             = errors.New("knowledge base unavailable")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTemporary         = errors.New("temporary failure")
)

const (
	MsgNotPDF          = "File must be PDF"
	MsgUploadFailed    = "Upload failed"
	MsgUploadTimeout   = "Upload timed out"
	MsgInvalidResponse = "Invalid server response"
	MsgChatError       = "Chat error!"
	MsgServerError     = "Server error!"
	MsgNoAnswer        = "No answer returned."
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// RemoteError is a failure reported by the backend, carrying the message the
// server sent in its "detail" field when there was one.
type RemoteError struct {
	Kind       error
	Operation  string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "remote error"
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("%s: %v (status %d)", e.Operation, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v (status %d): %s", e.Operation, e.Kind, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// UserMessage returns the human-readable text shown for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *RemoteError
	if errors.As(err, &remote) && strings.TrimSpace(remote.Message) != "" {
		return remote.Message
	}
	switch {
	case IsKind(err, ErrValidation):
		return MsgNotPDF
	case IsKind(err, ErrTimeout):
		return MsgUploadTimeout
	case IsKind(err, ErrProtocol):
		return MsgInvalidResponse
	case IsKind(err, ErrUpload):
		return MsgUploadFailed
	case IsKind(err, ErrChat):
		return MsgChatError
	case IsKind(err, ErrServer):
		return MsgServerError
	default:
		return err.Error()
	}
}
