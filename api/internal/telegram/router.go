package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tradepost-ocr/api/internal/admission"
	"tradepost-ocr/api/internal/ocr"
	"tradepost-ocr/api/internal/profit"
)

// botAPI is the part of *tgbotapi.BotAPI the router uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      botAPI
	Guard    *admission.Guard
	Gateway  *ocr.Gateway
	Quantity int
	Log      *zap.Logger

	// fetch downloads a Telegram file; replaced in tests.
	fetch func(ctx context.Context, url string) ([]byte, error)
}

func NewRouter(bot botAPI, guard *admission.Guard, gw *ocr.Gateway, quantity int, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if quantity <= 0 {
		quantity = 100
	}
	return &Router{Bot: bot, Guard: guard, Gateway: gw, Quantity: quantity, Log: log, fetch: download}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	if len(msg.Photo) > 0 {
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Photo[len(msg.Photo)-1].FileID)
		return
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Document.FileID)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, startText)
	case "health":
		r.send(cid, "✅ OK")
	case "lang":
		arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
		if arg == "" {
			r.send(cid, "Current language: "+string(getLang(cid))+"\nUsage: /lang ko|en|ja|zh")
			return
		}
		l := ocr.ParseLanguage(arg)
		if string(l) != arg {
			r.send(cid, "Unknown language. Available: ko | en | ja | zh")
			return
		}
		setLang(cid, l)
		r.send(cid, "✅ Language: "+string(l))
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) acceptPhoto(ctx context.Context, cid int64, fileID string) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(cid, fmt.Errorf("get file: %w", err))
		return
	}
	raw, err := r.fetch(ctx, url)
	if err != nil {
		r.SendError(cid, fmt.Errorf("download: %w", err))
		return
	}
	dataURL, err := prepareImage(raw)
	if err != nil {
		r.SendError(cid, fmt.Errorf("image: %w", err))
		return
	}

	body, _ := json.Marshal(map[string]string{"image": dataURL, "lang": string(getLang(cid))})
	ad, err := r.Guard.Admit(ctx, admission.Inbound{
		Method:   http.MethodPost,
		Identity: fmt.Sprintf("tg:%d", cid),
		Body:     bytes.NewReader(body),
		SkipAuth: true,
	})
	if err != nil {
		if rj, ok := admission.AsRejection(err); ok {
			r.send(cid, "⚠️ "+rj.Message)
			return
		}
		r.SendError(cid, err)
		return
	}

	r.send(cid, "Screenshot received, reading prices…")
	cctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()
	ext, err := r.Gateway.Extract(cctx, ad.Image, ad.Lang)
	if err != nil {
		r.Log.Warn("bot extraction failed", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "⚠️ "+extractErrorText(err))
		return
	}
	r.Log.Info("bot ocr success",
		zap.Int64("chat_id", cid),
		zap.Int("items", len(ext.Result.Items)),
		zap.Int("remaining", ad.Quota.Remaining),
	)
	r.send(cid, formatResult(ext, r.Quantity, ad.Quota.Remaining, ad.Quota.Limit))
}

func extractErrorText(err error) string {
	var (
		ue *ocr.UpstreamError
		pe *ocr.ParseError
	)
	switch {
	case errors.Is(err, ocr.ErrNotConfigured):
		return "Server misconfiguration: missing API key"
	case errors.Is(err, ocr.ErrBadImage):
		return "Invalid base64 image"
	case errors.As(err, &ue):
		return fmt.Sprintf("Gemini API error (%d)", ue.Status)
	case errors.As(err, &pe):
		return "Failed to parse Gemini response"
	default:
		return "Internal server error"
	}
}

func formatResult(ext ocr.Extraction, quantity, remaining, limit int) string {
	if !ext.Typed {
		return "Got a reply, but the prices could not be read. Try a clearer screenshot."
	}
	if len(ext.Result.Items) == 0 {
		msg := ext.Result.Error
		if msg == "" {
			msg = ocr.NoItemsMessage
		}
		return msg + fmt.Sprintf("\n\nQuota left: %d/%d", remaining, limit)
	}

	rows := profit.Calculate(ext.Result.Items, quantity)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d items (x%d):\n", len(rows), quantity)
	for _, row := range rows {
		if !row.Valid {
			fmt.Fprintf(&b, "• %s: buy %s, sell -\n", row.Name, num(row.BuyPrice))
			continue
		}
		fmt.Fprintf(&b, "• %s: buy %s, sell %s | %s/unit, total %s\n",
			row.Name, num(row.BuyPrice), num(row.SellPrice), signed(row.ProfitPerUnit), signed(row.TotalProfit))
	}
	if best, ok := profit.Best(rows); ok {
		fmt.Fprintf(&b, "\nBest: %s (%s/unit, %s total)\n", best.Name, signed(best.ProfitPerUnit), signed(best.TotalProfit))
	}
	fmt.Fprintf(&b, "\nQuota left: %d/%d", remaining, limit)
	return b.String()
}

func (r *Router) send(chatID int64, text string) {
	text = truncate(text, maxMessageRunes)
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.Log.Warn("bot request failed", zap.Int64("chat_id", chatID), zap.Error(err))
	r.send(chatID, fmt.Sprintf("OCR error: %v", err))
}

// Telegram caps messages at 4096 characters.
const maxMessageRunes = 3900

// truncate cuts s to at most n runes, never inside a multi-byte character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "…"
		}
		i++
	}
	return s
}

const startText = "Send a trading post screenshot and I will read the item prices and show the profit per item.\n" +
	"Commands: /lang ko|en|ja|zh, /health"
