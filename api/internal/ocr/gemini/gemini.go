package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"tradepost-ocr/api/internal/ocr"
	"tradepost-ocr/api/internal/util"
)

const (
	DefaultModel           = "gemini-2.0-flash"
	DefaultTemperature     = 0.1
	DefaultMaxOutputTokens = 2048
)

type Engine struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32

	opts []option.ClientOption
}

func New(apiKey, model string, temperature float32, maxOutputTokens int32, opts ...option.ClientOption) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	return &Engine{
		APIKey:          strings.TrimSpace(apiKey),
		Model:           strings.TrimSpace(model),
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
		opts:            opts,
	}
}

func (e *Engine) Name() string { return "gemini" }

// Generate sends the prompt and the inline image in one request. No retries.
func (e *Engine) Generate(ctx context.Context, prompt string, img ocr.Image) (string, error) {
	if e.APIKey == "" {
		return "", ocr.ErrNotConfigured
	}
	data, err := util.DecodeBase64(img.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ocr.ErrBadImage, err)
	}
	if len(data) == 0 {
		return "", ocr.ErrBadImage
	}

	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(e.Temperature),
		MaxOutputTokens: ptrInt32(e.MaxOutputTokens),
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(prompt),
		&genai.Blob{MIMEType: img.MIMEType, Data: data},
	)
	if err != nil {
		return "", upstreamError(err)
	}
	return firstText(resp), nil
}

// upstreamError keeps the HTTP status of API failures; transport errors pass through.
func upstreamError(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) && ae.HTTPCode() > 0 {
		return &ocr.UpstreamError{Status: ae.HTTPCode(), Body: ae.Error()}
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code > 0 {
		body := ge.Body
		if body == "" {
			body = ge.Message
		}
		return &ocr.UpstreamError{Status: ge.Code, Body: body}
	}
	return fmt.Errorf("gemini: %w", err)
}

// firstText reads candidates[0].content.parts[0] when it is text.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 {
		return ""
	}
	if t, ok := c.Content.Parts[0].(genai.Text); ok {
		return string(t)
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
