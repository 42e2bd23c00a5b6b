package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsDigest/internal/classify"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Classifier *classify.Classifier
	Repository ports.ArticleRepository
	Composer   *digest.Composer
	Notifier   ports.Notifier
	Logger     *slog.Logger
	// Query is stored alongside persisted articles; Label is shown in the digest.
	Query string
	Label string
}

// Pipeline implements one fetch, filter, dedup and deliver cycle.
type Pipeline struct {
	source     ports.ArticleSource
	classifier *classify.Classifier
	repository ports.ArticleRepository
	composer   *digest.Composer
	notifier   ports.Notifier
	logger     *slog.Logger
	query      string
	label      string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	composer := deps.Composer
	if composer == nil {
		composer = digest.NewComposer(0)
	}
	label := deps.Label
	if label == "" {
		label = deps.Query
	}
	return &Pipeline{
		source:     deps.Source,
		classifier: deps.Classifier,
		repository: deps.Repository,
		composer:   composer,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		query:      deps.Query,
		label:      label,
	}
}

// Run executes a single digest cycle at time now.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.RunReport, error) {
	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: now}
	if p.source == nil {
		return report, errors.New("pipeline has no article source")
	}

	fetched, err := p.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch feeds: %w", err)
	}
	report.Fetched = len(fetched)

	relevant := fetched
	if p.classifier != nil {
		relevant = p.classifier.Apply(fetched)
	}
	report.Relevant = len(relevant)

	unique, noURL, duplicates := uniqueByCanonicalURL(relevant)
	report.DroppedNoURL = noURL
	report.DuplicateURLs = duplicates

	fresh := unique
	if p.repository != nil && len(unique) > 0 {
		saved, err := p.repository.SaveNew(ctx, p.query, unique)
		if err != nil {
			return report, fmt.Errorf("save articles: %w", err)
		}
		report.Inserted = saved.Inserted
		report.Skipped = saved.Skipped
		fresh = saved.New
	}

	collapsed := dedup.CollapseNearDuplicates(fresh)
	report.DroppedNearDups = len(fresh) - len(collapsed)
	report.Grouped = len(collapsed)

	if len(collapsed) == 0 {
		p.info("nothing new to deliver", reportAttrs(report)...)
		return report, nil
	}

	out := p.composer.Compose(p.label, collapsed, now)
	report.Groups = len(out.Groups)
	report.Overflowed = out.Overflow != ""

	if err := p.deliver(ctx, out); err != nil {
		return report, err
	}
	report.Delivered = p.notifier != nil

	p.info("digest run finished", reportAttrs(report)...)
	return report, nil
}

func (p *Pipeline) deliver(ctx context.Context, out digest.Digest) error {
	if p.notifier == nil {
		return nil
	}

	ref, err := p.notifier.PublishDigest(ctx, out.Headline)
	if err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	if out.Overflow == "" {
		return nil
	}
	if err := p.notifier.PublishReply(ctx, ref, out.Overflow); err != nil {
		return fmt.Errorf("publish overflow: %w", err)
	}
	return nil
}

// uniqueByCanonicalURL keeps the first article per canonical URL and drops
// articles whose URL has no canonical form.
func uniqueByCanonicalURL(articles []domain.Article) (unique []domain.Article, noURL, duplicates int) {
	seen := make(map[string]struct{}, len(articles))
	unique = make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		key := dedup.CanonicalURL(article.URL)
		if key == "" {
			noURL++
			continue
		}
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, article)
	}
	return unique, noURL, duplicates
}

func reportAttrs(r domain.RunReport) []any {
	return []any{
		"run_id", r.RunID,
		"fetched", r.Fetched,
		"relevant", r.Relevant,
		"dropped_no_url", r.DroppedNoURL,
		"duplicate_urls", r.DuplicateURLs,
		"inserted", r.Inserted,
		"skipped", r.Skipped,
		"dropped_near_dups", r.DroppedNearDups,
		"grouped", r.Grouped,
		"groups", r.Groups,
		"overflowed", r.Overflowed,
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
