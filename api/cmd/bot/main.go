package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tradepost-ocr/api/internal/app"
	"tradepost-ocr/api/internal/config"
	"tradepost-ocr/api/internal/httpserver"
	"tradepost-ocr/api/internal/logger"
	"tradepost-ocr/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("Invalid configuration", zap.Error(err))
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		zl.Fatal("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer p.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		zl.Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	bot.Debug = false
	zl.Info("bot authorized", zap.String("username", bot.Self.UserName))

	r := telegram.NewRouter(bot, p.Guard, p.Gateway, cfg.BotQuantity, zl)

	// health endpoint for the platform; polling does not need it
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		if err := httpserver.Run(ctx, httpserver.Options{Addr: ":" + cfg.Port}, mux, zl); err != nil {
			zl.Error("health server failed", zap.Error(err))
		}
	}()

	runPolling(ctx, bot, zl, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, zl *zap.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)

	for {
		select {
		case <-ctx.Done():
			zl.Info("polling stopped")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err), baseDelay, maxDelay)
			zl.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
