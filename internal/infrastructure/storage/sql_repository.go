package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsDigest/internal/dedup"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Supported SQL dialects; each matches its database/sql driver name.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

const articlesTable = "articles"

// ErrUnknownDriver is returned for a dialect or driver the package cannot serve.
var ErrUnknownDriver = errors.New("unknown storage driver")

// SQLRepository persists articles keyed by the sha256 of their canonical URL.
type SQLRepository struct {
	db      *sql.DB
	dialect string
	builder sq.StatementBuilderType
}

var (
	_ ports.ArticleRepository = (*SQLRepository)(nil)
	_ ports.ArticleLister     = (*SQLRepository)(nil)
)

// Open connects to the database of the given dialect and verifies the connection.
func Open(ctx context.Context, dialect, dsn string) (*sql.DB, error) {
	if !knownDialect(dialect) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// NewSQLRepository wires a sql.DB implementation for the given dialect.
func NewSQLRepository(db *sql.DB, dialect string) (*SQLRepository, error) {
	if !knownDialect(dialect) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, dialect)
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == DialectPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return &SQLRepository{db: db, dialect: dialect, builder: builder}, nil
}

// SaveNew inserts every article whose canonical URL hash is not stored yet,
// in one transaction. Already stored articles count as skipped.
func (r *SQLRepository) SaveNew(ctx context.Context, topic string, articles []domain.Article) (domain.SaveResult, error) {
	var result domain.SaveResult
	if r.db == nil || len(articles) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, article := range articles {
		query, args, err := r.insertStatement(topic, article).ToSql()
		if err != nil {
			return domain.SaveResult{}, fmt.Errorf("build insert: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return domain.SaveResult{}, fmt.Errorf("insert article %s: %w", article.URL, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return domain.SaveResult{}, fmt.Errorf("rows affected: %w", err)
		}

		if affected == 0 {
			result.Skipped++
			continue
		}
		result.Inserted++
		result.New = append(result.New, article)
	}

	if err := tx.Commit(); err != nil {
		return domain.SaveResult{}, fmt.Errorf("commit: %w", err)
	}

	return result, nil
}

// Recent returns up to limit stored articles, newest first.
func (r *SQLRepository) Recent(ctx context.Context, limit int) ([]domain.Article, error) {
	if r.db == nil || limit <= 0 {
		return nil, nil
	}

	query, args, err := r.builder.
		Select("title", "url", "published", "source", "tags").
		From(articlesTable).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}

	var result []domain.Article
	for rows.Next() {
		var (
			article domain.Article
			tags    string
		)
		if err := rows.Scan(&article.Title, &article.URL, &article.Published, &article.Source, &tags); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan article: %w", err)
		}
		article.Tags = splitTags(tags)
		result = append(result, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func (r *SQLRepository) insertStatement(topic string, article domain.Article) sq.InsertBuilder {
	hash := dedup.URLHash(article.URL)

	insert := r.builder.
		Insert(articlesTable).
		Columns("keyword", "title", "url", "url_hash", "published", "source", "tags").
		Values(topic, article.Title, article.URL, hash[:], article.Published, articleSource(article), joinTags(article.Tags))

	if r.dialect == DialectMySQL {
		// A no-op update reports 0 affected rows for a duplicate hash while
		// every other error still surfaces, unlike INSERT IGNORE.
		return insert.Suffix("ON DUPLICATE KEY UPDATE id = id")
	}
	return insert.Suffix("ON CONFLICT (url_hash) DO NOTHING")
}

func articleSource(article domain.Article) string {
	if article.Source != "" {
		return article.Source
	}
	return domain.SourceFromTitle(article.Title)
}

func joinTags(tags []domain.Tag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ",")
}

func splitTags(raw string) []domain.Tag {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]domain.Tag, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, domain.Tag(p))
		}
	}
	return tags
}

func knownDialect(dialect string) bool {
	switch dialect {
	case DialectPostgres, DialectMySQL, DialectSQLite:
		return true
	default:
		return false
	}
}
