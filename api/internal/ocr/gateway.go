package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"tradepost-ocr/api/internal/util"
)

const DefaultMIME = "image/png"

// Gateway turns an admitted image into a model call and normalizes the reply.
type Gateway struct {
	model       Model
	defaultMIME string
	log         *zap.Logger
}

func NewGateway(model Model, defaultMIME string, log *zap.Logger) *Gateway {
	if defaultMIME == "" {
		defaultMIME = DefaultMIME
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{model: model, defaultMIME: defaultMIME, log: log}
}

// ParseImage splits a data URL into MIME type and payload, or applies the default MIME.
func (g *Gateway) ParseImage(field string) Image {
	mime, data := util.SplitDataURL(field, g.defaultMIME)
	return Image{MIMEType: mime, Data: data}
}

// Extract issues exactly one model call; failures are not retried.
func (g *Gateway) Extract(ctx context.Context, imageField, lang string) (Extraction, error) {
	img := g.ParseImage(imageField)
	prompt := Prompt(lang)

	text, err := g.model.Generate(ctx, prompt, img)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			g.log.Error("model api error",
				zap.String("model", g.model.Name()),
				zap.Int("status", ue.Status),
				zap.String("body", ue.Body),
			)
		}
		return Extraction{}, err
	}
	return Normalize(text)
}

// Normalize strips code fences and checks the text is a JSON object.
func Normalize(text string) (Extraction, error) {
	cleaned := util.StripCodeFences(text)

	var obj map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	if err := dec.Decode(&obj); err != nil {
		return Extraction{}, &ParseError{Raw: cleaned, Err: err}
	}
	if obj == nil {
		return Extraction{}, &ParseError{Raw: cleaned, Err: errors.New("top-level value is null")}
	}
	if dec.More() {
		return Extraction{}, &ParseError{Raw: cleaned, Err: errors.New("trailing data after JSON object")}
	}

	out := Extraction{Raw: json.RawMessage(cleaned)}
	if err := json.Unmarshal(out.Raw, &out.Result); err == nil {
		out.Typed = true
	}
	return out, nil
}
