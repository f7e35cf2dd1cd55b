// Package engine talks to the voice-cloning synthesis backend.
package engine

import "context"

// Request asks for Text to be spoken in the voice of ReferenceAudio and written to OutputPath
type Request struct {
	Text           string
	ReferenceAudio string
	Language       string
	OutputPath     string
}

// Synthesizer produces one audio artifact per request and returns its location
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// Engine is a Synthesizer with an explicit lifecycle. Open is called once before the
// first Synthesize and Close once after the last.
type Engine interface {
	Synthesizer
	Open(ctx context.Context) error
	Close() error
}
