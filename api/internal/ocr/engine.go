package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Model is the external multimodal model: prompt + image in, raw text out.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string, img Image) (string, error)
}

var (
	// ErrNotConfigured is returned before any call when the model has no API key.
	ErrNotConfigured = errors.New("model api key is not configured")
	// ErrBadImage means the image payload is not valid base64.
	ErrBadImage = errors.New("image payload is not valid base64")
)

// UpstreamError is a non-success reply from the model API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Body)
}

// ParseError means the cleaned model output is not the expected JSON object.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model output is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
