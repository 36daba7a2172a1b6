package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/recall-labs/recall/internal/domain"
)

// Repo reads the corpus owned by the ingestion pipeline: items and their
// embedded content chunks. Every query is read-only and scoped by user id.
//
// Repo is safe for concurrent use by multiple goroutines.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a corpus repository over an existing pool.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL      string
	MaxConns int32
}

// NewPool creates a pgx pool with pgvector types registered on every
// connection and verifies connectivity.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// searchChunksSQL ranks chunks by cosine similarity. pgvector's <=> is
// cosine distance, so similarity = 1 - distance.
const searchChunksSQL = `
	SELECT c.item_id, i.title, i.item_type, COALESCE(i.url, ''), c.content,
	       1 - (c.embedding <=> $1) AS similarity
	FROM content_chunks c
	JOIN items i ON i.id = c.item_id
	WHERE i.user_id = $2
	  AND 1 - (c.embedding <=> $1) >= $3
	ORDER BY c.embedding <=> $1
	LIMIT $4`

// SearchChunks returns the user's chunks with similarity >= threshold,
// ordered by descending similarity, at most limit rows.
func (r *Repo) SearchChunks(
	ctx context.Context, userID string, embedding []float32, threshold float64, limit int,
) ([]domain.ContentChunk, error) {
	rows, err := r.pool.Query(ctx, searchChunksSQL,
		pgvector.NewVector(embedding), userID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.ContentChunk
	for rows.Next() {
		var c domain.ContentChunk
		if err := rows.Scan(
			&c.ItemID, &c.ItemTitle, &c.ItemType, &c.ItemURL, &c.Content, &c.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunk rows: %w", err)
	}
	return chunks, nil
}

const itemCols = `id, title, item_type, COALESCE(url, ''),
	COALESCE(content, ''), COALESCE(description, ''), created_at`

const searchItemsByTokensSQL = `
	SELECT ` + itemCols + `
	FROM items
	WHERE user_id = $1
	  AND (title ILIKE ANY($2) OR content ILIKE ANY($2) OR description ILIKE ANY($2))
	ORDER BY created_at DESC
	LIMIT $3`

// SearchItemsByTokens returns items whose title, content, or description
// contains any of the given tokens, newest first.
func (r *Repo) SearchItemsByTokens(
	ctx context.Context, userID string, tokens []string, limit int,
) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, searchItemsByTokensSQL, userID, likePatterns(tokens), limit)
	if err != nil {
		return nil, fmt.Errorf("query items by tokens: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

const recentItemsSQL = `
	SELECT ` + itemCols + `
	FROM items
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2`

// RecentItems returns the user's most recently created items.
func (r *Repo) RecentItems(ctx context.Context, userID string, limit int) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, recentItemsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

const userIDByPhoneSQL = `SELECT user_id FROM user_profiles WHERE phone = $1`

// UserIDByPhone maps a messaging-channel phone number to a user scope.
func (r *Repo) UserIDByPhone(ctx context.Context, phone string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx, userIDByPhoneSQL, phone).Scan(&userID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", domain.ErrUserNotFound
	case err != nil:
		return "", fmt.Errorf("query user by phone: %w", err)
	}
	return userID, nil
}

func scanItems(rows pgx.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(
			&it.ID, &it.Title, &it.Type, &it.URL, &it.Content, &it.Description, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read item rows: %w", err)
	}
	return items, nil
}

// likeEscaper escapes LIKE wildcards in user tokens. Backslash first so
// the wrapping wildcards are not escaped again.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePatterns wraps each token for a case-insensitive substring match.
func likePatterns(tokens []string) []string {
	patterns := make([]string, len(tokens))
	for i, tok := range tokens {
		patterns[i] = "%" + likeEscaper.Replace(tok) + "%"
	}
	return patterns
}
