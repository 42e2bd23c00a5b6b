package storage

import (
	"context"
	"sync"

	"NewsDigest/internal/dedup"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// MemoryRepository remembers canonical URL hashes for the life of the process.
type MemoryRepository struct {
	mu       sync.Mutex
	seen     map[[32]byte]struct{}
	articles []domain.Article
}

var (
	_ ports.ArticleRepository = (*MemoryRepository)(nil)
	_ ports.ArticleLister     = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seen: make(map[[32]byte]struct{})}
}

// SaveNew records unseen articles and reports the rest as skipped.
func (r *MemoryRepository) SaveNew(_ context.Context, _ string, articles []domain.Article) (domain.SaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result domain.SaveResult
	for _, article := range articles {
		hash := dedup.URLHash(article.URL)
		if _, ok := r.seen[hash]; ok {
			result.Skipped++
			continue
		}
		r.seen[hash] = struct{}{}
		r.articles = append(r.articles, article)
		result.Inserted++
		result.New = append(result.New, article)
	}
	return result, nil
}

// Recent returns up to limit stored articles, newest first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Article, 0, min(limit, len(r.articles)))
	for i := len(r.articles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.articles[i])
	}
	return out, nil
}
