package screencast

import (
	"errors"

	"github.com/e7canasta/orion-screencast/framebridge"
	"github.com/e7canasta/orion-screencast/framesource"
	"github.com/e7canasta/orion-screencast/internal/lifecycle"
	"github.com/e7canasta/orion-screencast/internal/pipeline"
)

// Error classes. Use errors.Is on anything returned by this package.
var (
	// ErrPipelineBuild: an element is missing or stages cannot be linked.
	// Fatal for the attempt, never retried.
	ErrPipelineBuild = pipeline.ErrBuild
	// ErrBind: the receiver cannot listen on its port. Fatal, never retried.
	ErrBind = pipeline.ErrBind
	// ErrTransport: a failure reported by the pipeline while playing
	ErrTransport = pipeline.ErrTransport
	// ErrChannelClosed: the frame bridge consumer is gone
	ErrChannelClosed = framebridge.ErrClosed
	// ErrCaptureUnavailable: no display or window could be captured
	ErrCaptureUnavailable = framesource.ErrCaptureUnavailable
	// ErrAlreadyStarted: Start called twice on the same pipeline
	ErrAlreadyStarted = lifecycle.ErrAlreadyStarted
	// ErrEndOfStream: terminal cause of a pipeline that drained
	ErrEndOfStream = lifecycle.ErrEndOfStream

	ErrNotPlaying    = errors.New("screencast: pipeline not playing")
	ErrInvalidConfig = errors.New("screencast: invalid configuration")
)

// Typed errors, for errors.As
type (
	PipelineBuildError = pipeline.BuildError
	BindError          = pipeline.BindError
	TransportError     = pipeline.TransportError
	ErrorCategory      = pipeline.ErrorCategory
)

const (
	ErrCategoryNetwork = pipeline.ErrCategoryNetwork
	ErrCategoryCodec   = pipeline.ErrCategoryCodec
	ErrCategoryUnknown = pipeline.ErrCategoryUnknown
)
