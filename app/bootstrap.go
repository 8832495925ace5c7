package app

import (
	"context"
	"errors"
	"fmt"

	"example/meal-planner-api/app/ai"
	"example/meal-planner-api/app/config"
	"example/meal-planner-api/auth"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Bootstrap builds the shared clients from cfg. Integrations without
// configuration are left unset and their endpoints answer 503. The returned
// cleanup closes every opened connection.
func Bootstrap(ctx context.Context, cfg *config.Config) (Deps, func(), error) {
	log := NewModuleLogger("bootstrap")
	deps := Deps{Config: cfg, Metrics: NewMetrics()}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.WithError(err).Warn("cleanup failed")
			}
		}
	}
	fail := func(err error) (Deps, func(), error) {
		cleanup()
		return Deps{}, func() {}, err
	}

	verifier, err := auth.NewVerifierFromConfig(cfg.Auth)
	switch {
	case err == nil:
		deps.Verifier = verifier
	case auth.AuthDisabled():
		log.WithError(err).Warn("auth verifier unavailable; AUTH_DISABLED is set")
	default:
		return fail(fmt.Errorf("auth verifier: %w", err))
	}

	if cfg.DB.URL != "" {
		db, err := OpenDB(ctx, cfg.DB)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		deps.Store = NewSubscriptionStore(db)
	} else {
		log.Warn("POSTGRES_URL not set; subscription endpoints disabled")
	}

	if cfg.Redis.Addr != "" {
		cache, closeCache, err := NewRedisStatusCache(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeCache)
		deps.Cache = cache
	}

	billing, err := NewStripeBilling(cfg.Stripe)
	switch {
	case err == nil:
		deps.Billing = billing
	case errors.Is(err, ErrBillingNotConfigured):
		log.Warn("STRIPE_SECRET_KEY not set; billing disabled")
	default:
		return fail(err)
	}

	aiClient, err := ai.NewClient(cfg.AI)
	switch {
	case err == nil:
		deps.AI = aiClient
	case isAINotConfigured(err):
		log.Warn("OPENAI_API_KEY not set; recipe endpoints disabled")
	default:
		return fail(err)
	}

	if cfg.AWS.QueueURL != "" || cfg.AWS.ImageBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fail(fmt.Errorf("failed to load AWS config: %w", err))
		}
		if cfg.AWS.QueueURL != "" {
			deps.Notifier = NewSQSNotifier(sqs.NewFromConfig(awsCfg), cfg.AWS.QueueURL)
		}
		if cfg.AWS.ImageBucket != "" {
			deps.Images = NewImageStore(s3.NewFromConfig(awsCfg), cfg.AWS)
		}
	}

	return deps, cleanup, nil
}

// isAINotConfigured reports whether err means the AI client was never built.
func isAINotConfigured(err error) bool {
	return errors.Is(err, ai.ErrNotConfigured) || errors.Is(err, ErrAINotConfigured)
}
