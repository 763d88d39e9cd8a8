package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

var (
	// ErrBuild is the class of failures while creating, linking or preparing elements
	ErrBuild = errors.New("pipeline build failed")
	// ErrBind is the class of failures to open the receiving UDP socket
	ErrBind = errors.New("udp bind failed")
	// ErrTransport is the class of asynchronous failures while playing
	ErrTransport = errors.New("pipeline transport failure")
	// ErrIncompatibleLink means adjacent stages disagree on media kind
	ErrIncompatibleLink = errors.New("incompatible link")
)

// BuildError reports which stage could not be created, configured or linked
type BuildError struct {
	Stage   string
	Factory string
	Cause   error
}

func (e *BuildError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%v: %v", ErrBuild, e.Cause)
	}
	return fmt.Sprintf("%v at stage %s (%s): %v", ErrBuild, e.Stage, e.Factory, e.Cause)
}

// Is makes errors.Is(err, ErrBuild) true
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

func (e *BuildError) Unwrap() error { return e.Cause }

// BindError reports that the receiver could not listen on its address
type BindError struct {
	Addr  string
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%v on %s: %v", ErrBind, e.Addr, e.Cause)
}

// Is makes errors.Is(err, ErrBind) true
func (e *BindError) Is(target error) bool { return target == ErrBind }

func (e *BindError) Unwrap() error { return e.Cause }

// TransportError is a classified bus error raised while the pipeline plays
type TransportError struct {
	Category ErrorCategory
	Source   string
	Message  string
	Debug    string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v [%s] from %s: %s", ErrTransport, e.Category, e.Source, e.Message)
}

// Is makes errors.Is(err, ErrTransport) true
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ErrorCategory classifies GStreamer errors for logs and telemetry
type ErrorCategory int

const (
	// ErrCategoryNetwork indicates socket, address or routing failures
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec indicates encode, decode, negotiation or payload failures
	ErrCategoryCodec
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable category name
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

var (
	codecKeywords = []string{
		"codec", "decode", "encode", "format", "negotiat", "caps",
		"h264", "x264", "payload", "depay", "not negotiated", "no decoder",
		"missing plugin",
	}
	networkKeywords = []string{
		"socket", "bind", "address", "udp", "network", "unreachable",
		"connection", "timeout", "resolve", "could not get/set settings",
		"permission denied", "in use", "could not send", "could not receive",
	}
)

// ClassifyError categorises an error message and its debug string.
// Codec keywords win over network ones: a decoder error that mentions the
// UDP source in its debug trail is still a codec problem.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	if containsAny(combined, codecKeywords) {
		return ErrCategoryCodec
	}
	if containsAny(combined, networkKeywords) {
		return ErrCategoryNetwork
	}
	return ErrCategoryUnknown
}

// transportErrorFrom converts a bus error message into a TransportError
func transportErrorFrom(msg *gst.Message) *TransportError {
	gerr := msg.ParseError()
	if gerr == nil {
		return &TransportError{Category: ErrCategoryUnknown, Source: msg.Source(), Message: "unparseable error message"}
	}
	return &TransportError{
		Category: ClassifyError(gerr.Error(), gerr.DebugString()),
		Source:   msg.Source(),
		Message:  gerr.Error(),
		Debug:    gerr.DebugString(),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
