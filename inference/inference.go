// Package inference abstracts the model backends that generate replies.
//
// The engine only ever sees a Streamer: an opaque source of response
// fragments for a request. The Claude adapter is the provided backend;
// anything that can stream text can stand in for it.
package inference

import (
	"context"

	"github.com/alcoveai/alcove/core"
)

// Request describes one generation call.
type Request struct {
	// Model is the model identifier to generate with.
	Model string

	// System is the system prompt, already assembled by the caller.
	System string

	// Messages is the conversation window, oldest first. System-role
	// messages are folded into the system prompt by backends that have
	// no system role on the wire.
	Messages []core.Message

	// MaxTokens caps the response length.
	MaxTokens int64

	// Temperature adjusts sampling when > 0; zero means backend default.
	Temperature float64

	// TopP adjusts nucleus sampling when > 0; zero means backend default.
	TopP float64
}

// Streamer produces a response as a series of text fragments.
//
// Stream calls emit for every fragment in order, from a single goroutine,
// and returns once the response is complete or failed. Fragments already
// emitted stay emitted; a mid-stream error loses only the tail.
type Streamer interface {
	Stream(ctx context.Context, req *Request, emit func(fragment string)) error
}

// Provisioner answers whether a model's weights are available locally.
// Remote backends have no provisioning step and run without one.
type Provisioner interface {
	// Ready reports whether the model can be used right now.
	Ready(modelID string) bool

	// Path returns where the model's weights live on disk.
	Path(modelID string) (string, error)
}
