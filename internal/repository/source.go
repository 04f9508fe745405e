// Package repository loads poll feeds from a backing dataset.
//
// A Source is single-shot: every FetchAll call reads and decodes the dataset
// again, nothing is cached and nothing is retried. Failures are reported as
// *DataError values whose Kind is ErrSourceNotFound, ErrReadFailure or
// ErrDecodeFailure.
package repository

import (
	"context"
	"time"

	"github.com/marcus/pollexa/internal/models"
)

// Source fetches the complete poll list
type Source interface {
	FetchAll(ctx context.Context) ([]models.Poll, error)
}

// Pager is implemented by sources that can serve further pages after the
// first FetchAll. page is 1-based; page 1 is what FetchAll returns.
type Pager interface {
	FetchPage(ctx context.Context, page int) ([]models.Poll, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]models.Poll, error)

// FetchAll implements Source
func (f SourceFunc) FetchAll(ctx context.Context) ([]models.Poll, error) {
	return f(ctx)
}

type latencySource struct {
	Source
	delay time.Duration
}

type latencyPager struct {
	*latencySource
	pager Pager
}

// WithLatency delays every fetch on src by d. A zero or negative delay
// returns src unchanged. Cancelling ctx aborts the wait. If src is a Pager
// the result is one too.
func WithLatency(src Source, d time.Duration) Source {
	if d <= 0 {
		return src
	}
	ls := &latencySource{Source: src, delay: d}
	if p, ok := src.(Pager); ok {
		return &latencyPager{latencySource: ls, pager: p}
	}
	return ls
}

func (s *latencySource) FetchAll(ctx context.Context) ([]models.Poll, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.Source.FetchAll(ctx)
}

func (s *latencyPager) FetchPage(ctx context.Context, page int) ([]models.Poll, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.pager.FetchPage(ctx, page)
}

func (s *latencySource) wait(ctx context.Context) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
