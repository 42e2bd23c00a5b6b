package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	query    string
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
// query is passed to search-based scanners.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, query string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		query:    query,
		logger:   log,
	}
}

// Fetch runs every configured source in order and concatenates their
// articles. A failing source is logged and skipped; Fetch fails only when
// every source fails.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	var (
		aggregated []domain.Article
		errs       []error
	)
	for _, src := range s.sources {
		s.debug("process source", "source", src.Name, "scanner", src.Scanner)

		results, err := s.scan(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.warn("source failed", "source", src.Name, "error", err)
			errs = append(errs, err)
			continue
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = src.Name
			}
		}
		s.debug("source produced articles", "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	if len(errs) == len(s.sources) {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}

	s.debug("strategy source done", "total_articles", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) scan(ctx context.Context, src config.SourceConfig) ([]domain.Article, error) {
	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		SiteName: src.Name,
		URL:      src.URL,
		Query:    s.query,
		Limit:    src.Limit,
		Options:  src.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", src.Name, err)
	}
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
