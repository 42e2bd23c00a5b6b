package ports

import (
	"context"

	"NewsDigest/internal/domain"
)

// ArticleSource pulls fresh feed entries from upstream providers.
type ArticleSource interface {
	Fetch(ctx context.Context) ([]domain.Article, error)
}

// ArticleRepository remembers articles by canonical URL hash and hands back
// only the ones it has not seen before.
type ArticleRepository interface {
	SaveNew(ctx context.Context, topic string, articles []domain.Article) (domain.SaveResult, error)
}

// Notifier posts the digest to a chat channel. PublishDigest returns a
// reference that PublishReply uses to thread the overflow body under it.
type Notifier interface {
	PublishDigest(ctx context.Context, text string) (string, error)
	PublishReply(ctx context.Context, ref, text string) error
}

// ArticleLister reads back stored articles, newest first.
type ArticleLister interface {
	Recent(ctx context.Context, limit int) ([]domain.Article, error)
}
