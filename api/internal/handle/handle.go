package handle

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradepost-ocr/api/internal/admission"
	"tradepost-ocr/api/internal/ocr"
)

type Handle struct {
	guard    *admission.Guard
	gw       *ocr.Gateway
	ipHeader string
	log      *zap.Logger
}

func New(guard *admission.Guard, gw *ocr.Gateway, ipHeader string, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{guard: guard, gw: gw, ipHeader: ipHeader, log: log}
}

// errorResponse is the failure body: {error, detail?, raw?}.
type errorResponse struct {
	Error  string  `json:"error"`
	Detail any     `json:"detail,omitempty"`
	Raw    *string `json:"raw,omitempty"`
}

func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

func writeError(c *gin.Context, code int, msg string) {
	writeJSON(c, code, errorResponse{Error: msg})
}

func setHeaders(c *gin.Context, h map[string]string) {
	for k, v := range h {
		c.Header(k, v)
	}
}
