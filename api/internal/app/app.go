// Package app wires configuration into the admission guard and the
// extraction gateway shared by the HTTP proxy and the Telegram bot.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradepost-ocr/api/internal/admission"
	"tradepost-ocr/api/internal/config"
	"tradepost-ocr/api/internal/ocr"
	"tradepost-ocr/api/internal/ocr/gemini"
	"tradepost-ocr/api/internal/quota"
	"tradepost-ocr/api/internal/store"
)

type Pipeline struct {
	Guard   *admission.Guard
	Gateway *ocr.Gateway

	closers []func() error
}

func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Pipeline, error) {
	p := &Pipeline{}

	qs, err := p.quotaStore(ctx, cfg, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	model := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTemperature, cfg.GeminiMaxOutputTokens)
	if model.APIKey == "" {
		log.Warn("GEMINI_API_KEY is empty: extraction requests will fail")
	}
	p.Gateway = ocr.NewGateway(model, cfg.DefaultImageMIME, log)
	p.Guard = admission.New(admission.Config{
		AuthRequired:  cfg.AuthRequired,
		Token:         cfg.TestToken,
		MaxImageChars: cfg.MaxImageChars,
		Policy:        cfg.Quota,
	}, qs, log)

	log.Info("pipeline ready",
		zap.String("model", model.Model),
		zap.String("quota_backend", cfg.QuotaBackend),
		zap.String("quota_strategy", string(cfg.Quota.Strategy)),
		zap.Int("quota_limit", cfg.Quota.Limit),
		zap.Bool("auth_required", cfg.AuthRequired),
	)
	return p, nil
}

func (p *Pipeline) quotaStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (quota.Store, error) {
	switch cfg.QuotaBackend {
	case config.BackendRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		p.closers = append(p.closers, rdb.Close)
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		rq, err := store.NewRedisQuota(rdb, cfg.Quota, time.Now)
		if err != nil {
			return nil, err
		}
		return rq, nil

	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, db.Close)
		log.Info("db connected", zap.String("dsn", store.SafeDSNSummary(cfg.DatabaseURL)))
		pq := store.NewPostgresQuota(db, cfg.Quota.Limit, time.Now)
		if err := pq.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pq, nil

	default:
		return quota.NewMemory(cfg.Quota, time.Now)
	}
}

func (p *Pipeline) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}
