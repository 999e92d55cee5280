// Package resilience wraps an llm.Client with error-type-aware retry logic.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"mlforge/pkg/llm"
	"mlforge/pkg/llm/llmerrors"
	"mlforge/pkg/logx"
)

// RetryableClient retries Complete calls with per-error-type exponential
// backoff. Non-retryable errors (auth, rate limit, bad prompt) pass through
// on the first attempt so the run driver can surface them.
type RetryableClient struct {
	client llm.Client
	logger *logx.Logger
}

// NewRetryableClient wraps client with retry behavior.
func NewRetryableClient(client llm.Client) *RetryableClient {
	return &RetryableClient{
		client: client,
		logger: logx.NewLogger("llm-retry"),
	}
}

// Complete implements llm.Client.
func (r *RetryableClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	var lastErr error
	var retryConfig llmerrors.RetryConfig
	var errorType llmerrors.ErrorType
	start := time.Now()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, retryConfig)
			select {
			case <-ctx.Done():
				return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			if attempt > 0 {
				r.logger.Debug("completion succeeded after %d retries in %v", attempt, time.Since(start))
			}
			return resp, nil
		}

		lastErr = err
		classified := classify(err)
		retryConfig = classified.GetRetryConfig()
		errorType = classified.Type

		if !classified.IsRetryable() || attempt >= retryConfig.MaxRetries {
			break
		}
		r.logger.Debug("attempt %d failed (%s): %v", attempt+1, errorType.String(), err)
	}

	if retryConfig.MaxRetries == 0 {
		return llm.CompletionResponse{}, lastErr
	}
	return llm.CompletionResponse{}, fmt.Errorf("failed after %d retries (%s) in %v: %w",
		retryConfig.MaxRetries, errorType.String(), time.Since(start), lastErr)
}

// GetModelName implements llm.Client.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

func classify(err error) *llmerrors.Error {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return llmerrors.Classify(err)
}

func backoffDelay(attempt int, cfg llmerrors.RetryConfig) time.Duration {
	if attempt == 0 || cfg.InitialDelay == 0 {
		return 0
	}

	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter {
		jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1)) //nolint:gosec // jitter, not crypto
		delay += jitter - time.Duration(int64(delay)/10)
	}
	if delay < 0 {
		delay = cfg.InitialDelay
	}
	return delay
}
