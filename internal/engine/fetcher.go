package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roomsync/internal/domain"
	"roomsync/internal/observability"
	"roomsync/internal/retry"
)

// MessageAPI is the read surface of the message source. The HTTP client
// implements it in production; tests use fakes.
type MessageAPI interface {
	// FetchSince returns messages with id greater than sinceID, ascending.
	FetchSince(ctx context.Context, roomID string, sinceID int64, limit int) ([]domain.Message, error)
	// FetchPage returns up to limit messages with id below before,
	// newest first. A zero cursor means the newest page.
	FetchPage(ctx context.Context, roomID string, before int64, limit int) ([]domain.Message, error)
}

// StatusError exposes the HTTP status of a failed fetch so the fetcher
// can tell transient failures from permanent ones.
type StatusError interface {
	error
	StatusCode() int
}

const (
	defaultFetchAttempts = 3
	defaultFetchBase     = 1 * time.Second
	defaultPageSize      = 50
)

// Fetcher wraps a MessageAPI with bounded linear retry. Rate limiting,
// server errors and transport failures are retried; any other client
// error fails immediately.
type Fetcher struct {
	api      MessageAPI
	attempts int
	base     time.Duration
	pageSize int
}

// NewFetcher creates a fetcher with the reference retry policy.
func NewFetcher(api MessageAPI) *Fetcher {
	return &Fetcher{
		api:      api,
		attempts: defaultFetchAttempts,
		base:     defaultFetchBase,
		pageSize: defaultPageSize,
	}
}

// Since fetches messages newer than sinceID, ascending.
func (f *Fetcher) Since(ctx context.Context, roomID string, sinceID int64) ([]domain.Message, error) {
	return f.fetch(ctx, func(ctx context.Context) ([]domain.Message, error) {
		return f.api.FetchSince(ctx, roomID, sinceID, f.pageSize)
	})
}

// Page fetches the page of messages older than before, newest first.
func (f *Fetcher) Page(ctx context.Context, roomID string, before int64) ([]domain.Message, error) {
	return f.fetch(ctx, func(ctx context.Context) ([]domain.Message, error) {
		return f.api.FetchPage(ctx, roomID, before, f.pageSize)
	})
}

func (f *Fetcher) fetch(ctx context.Context, call func(context.Context) ([]domain.Message, error)) ([]domain.Message, error) {
	start := time.Now()
	var msgs []domain.Message
	err := retry.Do(ctx, f.attempts, retry.Linear(f.base), func(ctx context.Context) error {
		var callErr error
		msgs, callErr = call(ctx)
		return classify(callErr)
	})
	observability.SyncFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// classify marks non-retryable client errors as permanent. 429 stays
// retryable; so do server errors and anything without a status.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode()
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
	}
	return err
}
