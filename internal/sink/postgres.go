package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/resilience"
	"github.com/lib/pq"
)

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	term       TEXT PRIMARY KEY,
	record_ids BIGINT[] NOT NULL,
	doc_freq   INTEGER NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table)
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (term, record_ids, doc_freq)
VALUES ($1, $2, $3)
ON CONFLICT (term) DO UPDATE
SET record_ids = EXCLUDED.record_ids, doc_freq = EXCLUDED.doc_freq, indexed_at = NOW()`, table)
}

// classifyPQ marks Postgres errors that no retry can fix as permanent: data
// exceptions (22), integrity violations (23) and syntax or access errors
// (42), such as a missing column or table.
func classifyPQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Class() {
	case "22", "23", "42":
		return resilience.Permanent(err)
	}
	return err
}

// NewPostgres creates the entries table if missing and returns a sink that
// upserts batches of entries in one transaction each.
func NewPostgres(ctx context.Context, db *postgres.Client, batchSize int, retry resilience.RetryConfig, m *metrics.Metrics) (Sink, error) {
	table := db.Table()
	if _, err := db.DB.ExecContext(ctx, createTableSQL(table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}
	upsert := upsertSQL(table)
	flush := func(ctx context.Context, batch []index.Entry) error {
		return classifyPQ(db.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, upsert)
			if err != nil {
				return fmt.Errorf("preparing upsert: %w", err)
			}
			defer stmt.Close()
			for _, e := range batch {
				if _, err := stmt.ExecContext(ctx, e.Term, pq.Array(e.RecordIDs), e.DocFreq()); err != nil {
					return fmt.Errorf("upserting %q: %w", e.Term, err)
				}
			}
			return nil
		}))
	}
	return newBatcher("postgres", batchSize, retry, m, flush, db.Close).withPing(db.DB.PingContext), nil
}
