package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradepost-ocr/api/internal/admission"
	"tradepost-ocr/api/internal/middleware"
	"tradepost-ocr/api/internal/ocr"
)

// Preflight answers CORS negotiation without touching quota.
func (h *Handle) Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// OCR admits the request, runs one extraction and returns the model's JSON.
func (h *Handle) OCR(c *gin.Context) {
	ctx := c.Request.Context()
	in := admission.Inbound{
		Method:   c.Request.Method,
		Token:    c.GetHeader(admission.TokenHeader),
		Identity: admission.ClientIdentity(c.Request, h.ipHeader),
		Body:     c.Request.Body,
	}

	ad, err := h.guard.Admit(ctx, in)
	if err != nil {
		h.writeRejection(c, err)
		return
	}

	ext, err := h.gw.Extract(ctx, ad.Image, ad.Lang)
	if err != nil {
		h.writeExtractError(c, ad, err)
		return
	}

	setHeaders(c, admission.RateLimitHeaders(ad.Quota))
	h.log.Info("ocr success",
		zap.String("ip", ad.Identity),
		zap.String("lang", ad.Lang),
		zap.Int("items", len(ext.Result.Items)),
		zap.Int("remaining", ad.Quota.Remaining),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.Data(http.StatusOK, "application/json; charset=utf-8", ext.Raw)
}

func (h *Handle) writeRejection(c *gin.Context, err error) {
	rj, ok := admission.AsRejection(err)
	if !ok {
		h.log.Error("admission failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	setHeaders(c, rj.Headers)
	writeError(c, rj.Status, rj.Message)
}

func (h *Handle) writeExtractError(c *gin.Context, ad admission.Admitted, err error) {
	var (
		ue *ocr.UpstreamError
		pe *ocr.ParseError
	)
	switch {
	case errors.Is(err, ocr.ErrNotConfigured):
		h.log.Error("model is not configured")
		writeError(c, http.StatusInternalServerError, "Server misconfiguration: missing API key")
	case errors.Is(err, ocr.ErrBadImage):
		writeError(c, http.StatusBadRequest, "Invalid base64 image")
	case errors.As(err, &ue):
		// upstream body is logged by the gateway, never returned
		writeJSON(c, http.StatusBadGateway, errorResponse{Error: "Gemini API error", Detail: ue.Status})
	case errors.As(err, &pe):
		h.log.Warn("unparseable model output", zap.String("ip", ad.Identity), zap.String("raw", pe.Raw))
		raw := pe.Raw
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "Failed to parse Gemini response", Raw: &raw})
	case errors.Is(err, context.Canceled):
		h.log.Info("client went away", zap.String("ip", ad.Identity))
		writeError(c, http.StatusInternalServerError, "Internal server error")
	default:
		h.log.Error("ocr processing error", zap.String("ip", ad.Identity), zap.Error(err))
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Detail: err.Error()})
	}
}

func (h *Handle) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
