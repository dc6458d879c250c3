package admission

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tradepost-ocr/api/internal/quota"
)

const (
	TokenHeader     = "X-Test-Token"
	DefaultMaxImage = 1_400_000
	DefaultLang     = "en"

	// room for the JSON envelope and the lang field around the image
	bodySlack = 64 << 10
)

type Config struct {
	AuthRequired  bool
	Token         string
	MaxImageChars int
	Policy        quota.Policy
}

// Inbound is what the guard needs from an HTTP request.
type Inbound struct {
	Method   string
	Token    string
	Identity string
	Body     io.Reader
	// SkipAuth is set by trusted front-ends that authenticate on their own.
	SkipAuth bool
}

type Admitted struct {
	Identity string
	Image    string
	Lang     string
	Quota    quota.Decision
}

type inboundBody struct {
	Image string `json:"image"`
	Lang  string `json:"lang"`
}

// Rejection is a terminal answer to the caller.
type Rejection struct {
	Status  int
	Message string
	Headers map[string]string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%d %s: %v", r.Status, r.Message, r.Err)
	}
	return fmt.Sprintf("%d %s", r.Status, r.Message)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(status int, msg string) *Rejection {
	return &Rejection{Status: status, Message: msg}
}

type Guard struct {
	cfg   Config
	store quota.Store
	log   *zap.Logger
}

func New(cfg Config, store quota.Store, log *zap.Logger) *Guard {
	if cfg.MaxImageChars <= 0 {
		cfg.MaxImageChars = DefaultMaxImage
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{cfg: cfg, store: store, log: log}
}

func (g *Guard) Policy() quota.Policy { return g.cfg.Policy }

// Admit runs method, auth, quota and payload checks in that order and stops at
// the first failure. An admitted request has already consumed one quota slot.
func (g *Guard) Admit(ctx context.Context, in Inbound) (Admitted, error) {
	if in.Method != http.MethodPost {
		return Admitted{}, reject(http.StatusMethodNotAllowed, "Method not allowed")
	}

	if g.cfg.AuthRequired && !in.SkipAuth && !g.tokenOK(in.Token) {
		g.log.Info("unauthorized request", zap.String("ip", in.Identity))
		return Admitted{}, reject(http.StatusUnauthorized, "Unauthorized")
	}

	identity := in.Identity
	if identity == "" {
		identity = "unknown"
	}
	dec, err := g.store.Take(ctx, identity)
	if err != nil {
		g.log.Error("quota store failed", zap.String("ip", identity), zap.Error(err))
		return Admitted{}, &Rejection{Status: http.StatusInternalServerError, Message: "Quota store unavailable", Err: err}
	}
	if !dec.Allowed {
		g.log.Info("quota exceeded", zap.String("ip", identity), zap.Int("limit", dec.Limit))
		rj := reject(http.StatusTooManyRequests, g.cfg.Policy.RetryHint())
		rj.Headers = RateLimitHeaders(dec)
		if secs := int(math.Ceil(dec.RetryAfter.Seconds())); secs > 0 {
			rj.Headers["Retry-After"] = strconv.Itoa(secs)
		}
		return Admitted{}, rj
	}

	body, rj := g.readBody(in.Body)
	if rj != nil {
		return Admitted{}, rj
	}

	lang := strings.TrimSpace(body.Lang)
	if lang == "" {
		lang = DefaultLang
	}
	return Admitted{Identity: identity, Image: body.Image, Lang: lang, Quota: dec}, nil
}

func (g *Guard) tokenOK(provided string) bool {
	if g.cfg.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(g.cfg.Token)) == 1
}

func (g *Guard) readBody(r io.Reader) (inboundBody, *Rejection) {
	if r == nil {
		return inboundBody{}, reject(http.StatusBadRequest, "Invalid JSON body")
	}
	limit := int64(g.cfg.MaxImageChars) + bodySlack
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return inboundBody{}, &Rejection{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
	}
	if int64(len(raw)) > limit {
		return inboundBody{}, reject(http.StatusRequestEntityTooLarge, g.tooLargeMessage())
	}

	var body inboundBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return inboundBody{}, &Rejection{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
	}
	if body.Image == "" {
		return inboundBody{}, reject(http.StatusBadRequest, `Missing "image" field (base64)`)
	}
	if len(body.Image) > g.cfg.MaxImageChars {
		return inboundBody{}, reject(http.StatusRequestEntityTooLarge, g.tooLargeMessage())
	}
	return body, nil
}

// tooLargeMessage states the ceiling in decoded megabytes.
func (g *Guard) tooLargeMessage() string {
	mb := float64(g.cfg.MaxImageChars) * 3 / 4 / 1e6
	s := strconv.FormatFloat(float64(int(mb*10))/10, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return "Image too large. Max " + s + "MB."
}

// RateLimitHeaders renders a quota decision as response headers.
func RateLimitHeaders(d quota.Decision) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(d.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(d.Remaining),
	}
	if !d.ResetAt.IsZero() {
		h["X-RateLimit-Reset"] = strconv.FormatInt(d.ResetAt.Unix(), 10)
	}
	return h
}

// AsRejection unwraps a guard error.
func AsRejection(err error) (*Rejection, bool) {
	var rj *Rejection
	if errors.As(err, &rj) {
		return rj, true
	}
	return nil, false
}
