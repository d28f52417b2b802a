package embedding

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	kindQuery    = "query"
	kindDocument = "document"
)

// Cached persists embeddings in SQLite so repeated texts skip the provider.
// Entries are keyed by model, output dimensions, task kind and text.
type Cached struct {
	db     *sql.DB
	next   Embedder
	logger *zap.Logger
}

// NewCached opens or creates the cache database at path.
func NewCached(path string, next Embedder, logger *zap.Logger) (*Cached, error) {
	if next == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating embedding cache schema: %w", err)
	}

	return &Cached{
		db:     db,
		next:   next,
		logger: logger.With(zap.String("cache", path)),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS embeddings (
			key TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			kind TEXT NOT NULL,
			dims INTEGER NOT NULL,
			vector BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func (c *Cached) Close() error {
	return c.db.Close()
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Dimensions() int { return c.next.Dimensions() }

func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(kindQuery, text)

	vec, ok, err := c.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return vec, nil
	}

	vec, err = c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, key, kindQuery, vec); err != nil {
		return nil, err
	}

	return vec, nil
}

func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var (
		missing   []string
		missingAt []int
	)
	for i, text := range texts {
		keys[i] = c.key(kindDocument, text)

		vec, ok, err := c.lookup(ctx, keys[i])
		if err != nil {
			return nil, err
		}
		if ok {
			vectors[i] = vec
			continue
		}

		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}

	c.logger.Debug("embedding cache lookup",
		zap.Int("hits", len(texts)-len(missing)),
		zap.Int("misses", len(missing)),
	)

	if len(missing) == 0 {
		return vectors, nil
	}

	fresh, err := c.next.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}

	for j, idx := range missingAt {
		if err := c.store(ctx, keys[idx], kindDocument, fresh[j]); err != nil {
			return nil, err
		}
		vectors[idx] = fresh[j]
	}

	return vectors, nil
}

func (c *Cached) key(kind, text string) string {
	dims := strconv.Itoa(c.next.Dimensions())
	sum := sha256.Sum256([]byte(c.next.Model() + "\x00" + dims + "\x00" + kind + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) lookup(ctx context.Context, key string) ([]float32, bool, error) {
	var (
		dims int
		blob []byte
	)
	err := c.db.QueryRowContext(ctx, `SELECT dims, vector FROM embeddings WHERE key = ?`, key).Scan(&dims, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading embedding cache: %w", err)
	}

	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}

	// Stale entries are re-embedded and overwritten.
	if want := c.next.Dimensions(); len(vec) != dims || (want > 0 && len(vec) != want) {
		c.logger.Debug("discarding cached vector", zap.Int("dims", len(vec)), zap.Int("expected", want))
		return nil, false, nil
	}

	return vec, true, nil
}

func (c *Cached) store(ctx context.Context, key, kind string, vec []float32) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (key, model, kind, dims, vector) VALUES (?, ?, ?, ?, ?)`,
		key, c.next.Model(), kind, len(vec), encodeVector(vec),
	)
	if err != nil {
		return fmt.Errorf("writing embedding cache: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(buf))
	}

	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
