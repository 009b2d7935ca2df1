package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// rrfK is the reciprocal-rank-fusion constant. Both ranked lists
// contribute 1/(rrfK + rank) to a document's fused score.
const rrfK = 60

// Store manages the product index: schema provisioning, document upserts,
// and hybrid queries. It is safe for concurrent use; read/write isolation
// is delegated to PostgreSQL (writes are eventually visible to readers,
// no snapshot guarantees are made across calls).
type Store struct {
	pool   *pgxpool.Pool
	cfg    IndexConfiguration
	logger *slog.Logger
}

// New creates a Store for the given index configuration.
// The configuration is validated up front; provisioning happens separately
// via Provision so read-only consumers never touch DDL.
func New(pool *pgxpool.Pool, cfg IndexConfiguration, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("index configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{pool: pool, cfg: cfg, logger: logger}, nil
}

// Dimensions returns the index's declared embedding dimensionality.
func (s *Store) Dimensions() int { return s.cfg.Dimensions }

// Provision creates or updates the index schema. It is declarative and
// idempotent: applying the same configuration twice leaves the schema
// unchanged and never deletes stored documents.
//
// Returns *ProvisioningError if the store rejects the schema, for example
// when the table already holds vectors of a different dimensionality.
func (s *Store) Provision(ctx context.Context) error {
	table := pgx.Identifier{s.cfg.Name}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: fmt.Errorf("enabling pgvector: %w", err)}
	}

	// Reject dimensionality changes before running any DDL so a bad
	// configuration cannot disturb an existing index.
	if dims, ok, err := s.existingDimensions(ctx, tx); err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: err}
	} else if ok && dims != s.cfg.Dimensions {
		return &ProvisioningError{
			Index: s.cfg.Name,
			Err:   fmt.Errorf("vector field has %d dimensions, configuration declares %d", dims, s.cfg.Dimensions),
		}
	}

	// Key field, two searchable text fields, one vector field. The lexeme
	// column realizes the semantic configuration: title terms weighted
	// above prioritized content terms.
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id      text PRIMARY KEY,
			title   text NOT NULL DEFAULT '',
			content text NOT NULL DEFAULT '',
			embedding vector(%d),
			lexeme tsvector GENERATED ALWAYS AS (
				setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(content, '')), 'B')
			) STORED
		)`, table, s.cfg.Dimensions)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: fmt.Errorf("creating table: %w", err)}
	}

	lexIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (lexeme)`,
		pgx.Identifier{s.cfg.Name + "_lexeme_idx"}.Sanitize(), table)
	if _, err := tx.Exec(ctx, lexIndex); err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: fmt.Errorf("creating lexical index: %w", err)}
	}

	// One ANN index per profile-bound HNSW configuration. Exhaustive
	// configurations need no index: queries scan and sort exactly.
	for _, algo := range s.cfg.hnswAlgorithms() {
		annIndex := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			pgx.Identifier{s.cfg.Name + "_" + algo.Name + "_idx"}.Sanitize(), table,
			algo.M, algo.EfConstruction,
		)
		if _, err := tx.Exec(ctx, annIndex); err != nil {
			return &ProvisioningError{Index: s.cfg.Name, Err: fmt.Errorf("creating hnsw index %q: %w", algo.Name, err)}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &ProvisioningError{Index: s.cfg.Name, Err: err}
	}

	s.logger.Debug("index provisioned",
		"index", s.cfg.Name,
		"dimensions", s.cfg.Dimensions,
		"profile", s.cfg.DefaultProfile,
	)
	return nil
}

// existingDimensions reads the vector column's declared dimensionality if
// the table already exists. ok is false when there is nothing to compare.
func (s *Store) existingDimensions(ctx context.Context, tx pgx.Tx) (dims int, ok bool, err error) {
	var exists *string
	if err := tx.QueryRow(ctx, `SELECT to_regclass($1)::text`, s.cfg.Name).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("checking table existence: %w", err)
	}
	if exists == nil {
		return 0, false, nil
	}

	// pgvector stores the dimension count in the column's type modifier.
	err = tx.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = $2 AND NOT attisdropped`,
		s.cfg.Name, FieldVector,
	).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading vector dimensionality: %w", err)
	}
	return dims, true, nil
}

// Upsert writes documents into the index with last-write-wins semantics:
// a document whose id already exists is overwritten, not merged.
//
// All documents go through a single transaction, so a canceled context
// never leaves a partially written batch behind.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document without id")
		}
		if len(doc.Vector) != s.cfg.Dimensions {
			return fmt.Errorf("document %q: vector has %d dimensions, index requires %d",
				doc.ID, len(doc.Vector), s.cfg.Dimensions)
		}
	}

	table := pgx.Identifier{s.cfg.Name}.Sanitize()
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, title, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, doc := range docs {
		vec := pgvector.NewVector(doc.Vector)
		batch.Queue(stmt, doc.ID, doc.Title, doc.Content, vec)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range docs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upserting document %q: %w", docs[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	s.logger.Debug("documents upserted", "index", s.cfg.Name, "count", len(docs))
	return nil
}

// HybridSearch runs one fused lexical + vector query and returns at most
// q.TopK hits ordered best-first. Lexical matches over title/content and
// cosine nearest neighbors are combined with reciprocal rank fusion.
func (s *Store) HybridSearch(ctx context.Context, q Query) ([]Hit, error) {
	if q.TopK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", q.TopK)
	}
	if len(q.Vector) != s.cfg.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index requires %d",
			len(q.Vector), s.cfg.Dimensions)
	}

	algo, err := s.cfg.activeAlgorithm()
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning search transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Algorithm knobs are transaction-local so concurrent queries with
	// different profiles never interfere.
	switch algo.Kind {
	case AlgorithmHNSW:
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, algo.EfSearch)); err != nil {
			return nil, fmt.Errorf("setting ef_search: %w", err)
		}
	case AlgorithmExhaustiveKNN:
		// Force an exact scan even when an ANN index exists.
		if _, err := tx.Exec(ctx, `SET LOCAL enable_indexscan = off`); err != nil {
			return nil, fmt.Errorf("disabling index scans: %w", err)
		}
	}

	table := pgx.Identifier{s.cfg.Name}.Sanitize()
	stmt := fmt.Sprintf(`
		WITH lexical AS (
			SELECT id, row_number() OVER (ORDER BY ts_rank_cd(lexeme, query) DESC, id) AS rank
			FROM %[1]s, plainto_tsquery('english', $1) query
			WHERE lexeme @@ query
			ORDER BY ts_rank_cd(lexeme, query) DESC, id
			LIMIT $2
		),
		semantic AS (
			SELECT id, row_number() OVER (ORDER BY embedding <=> $3, id) AS rank
			FROM %[1]s
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $3, id
			LIMIT $2
		)
		SELECT d.id, d.title, d.content,
		       coalesce(1.0 / ($4 + lexical.rank), 0) +
		       coalesce(1.0 / ($4 + semantic.rank), 0) AS score
		FROM lexical
		FULL OUTER JOIN semantic USING (id)
		JOIN %[1]s d USING (id)
		ORDER BY score DESC, d.id
		LIMIT $2`, table)

	vec := pgvector.NewVector(q.Vector)
	rows, err := tx.Query(ctx, stmt, q.Text, q.TopK, vec, rrfK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, q.TopK)
	for rows.Next() {
		var h Hit
		var score float64
		if err := rows.Scan(&h.ID, &h.Title, &h.Content, &score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading hits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing search transaction: %w", err)
	}

	s.logger.Debug("hybrid search",
		"index", s.cfg.Name,
		"top_k", q.TopK,
		"hits", len(hits),
	)
	return hits, nil
}

// Count returns the number of documents in the index.
func (s *Store) Count(ctx context.Context) (int64, error) {
	table := pgx.Identifier{s.cfg.Name}.Sanitize()

	var count int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
