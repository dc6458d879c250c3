package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradepost-ocr/api/internal/admission"
	"tradepost-ocr/api/internal/handle"
	"tradepost-ocr/api/internal/middleware"
)

const OCRPath = "/api/ocr"

type Router struct {
	h      *handle.Handle
	logger *zap.Logger
}

func New(h *handle.Handle, logger *zap.Logger) *Router {
	return &Router{h: h, logger: logger}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS("Content-Type, " + admission.TokenHeader))

	router.GET("/healthz", r.h.Healthz)

	router.OPTIONS(OCRPath, r.h.Preflight)
	router.POST(OCRPath, r.h.OCR)
	// other verbs reach the guard and get 405 there
	router.Match([]string{
		http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead,
	}, OCRPath, r.h.OCR)

	return router
}
