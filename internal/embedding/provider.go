// Package embedding talks to the external face detection and embedding
// service. The model itself is a black box: we send image bytes, we get back
// one fixed-length vector per detected face.
package embedding

import (
	"context"
	"errors"
)

// ErrNoFaceDetected is returned when the provider finds no usable face in an
// image. Callers treat it the same as an empty result: skip, not error.
var ErrNoFaceDetected = errors.New("no face detected")

// Provider extracts face embeddings from an image.
type Provider interface {
	Name() string
	// Dim returns the dimensionality of the vectors this provider emits.
	Dim() int
	// Extract returns one embedding per detected face. An image without
	// faces may yield either an empty slice or ErrNoFaceDetected; both
	// mean the same thing.
	Extract(ctx context.Context, imageData []byte) ([][]float32, error)
}
