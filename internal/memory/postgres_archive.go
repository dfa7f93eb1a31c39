package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

// PostgresArchive durably records completed consultations. The Redis
// store serves similarity lookups; the archive exists for audit and
// replay, so writes here are best-effort from the caller's perspective.
type PostgresArchive struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresArchive(dsn string, logger *zap.Logger) (*PostgresArchive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect consultation archive: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresArchive{db: db, logger: logger}, nil
}

// NewPostgresArchiveWithDB wires an existing handle, used by tests.
func NewPostgresArchiveWithDB(db *sqlx.DB, logger *zap.Logger) *PostgresArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresArchive{db: db, logger: logger}
}

// Archive upserts one entry keyed by (tenant_id, query_hash).
func (a *PostgresArchive) Archive(ctx context.Context, e Entry) error {
	mindMap, err := json.Marshal(e.MindMap)
	if err != nil {
		return fmt.Errorf("encode mind map: %w", err)
	}
	subQuestions, err := json.Marshal(e.SubQuestions)
	if err != nil {
		return fmt.Errorf("encode sub questions: %w", err)
	}
	evidenceMap, err := json.Marshal(e.EvidenceMap)
	if err != nil {
		return fmt.Errorf("encode evidence map: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO consultation_archive
			(id, tenant_id, query_hash, query, mind_map, sub_questions, evidence_map, answer_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, query_hash) DO UPDATE SET
			mind_map = EXCLUDED.mind_map,
			sub_questions = EXCLUDED.sub_questions,
			evidence_map = EXCLUDED.evidence_map,
			answer_summary = EXCLUDED.answer_summary,
			created_at = EXCLUDED.created_at
	`, e.ID, e.TenantID, e.QueryHash, e.Query, mindMap, subQuestions, evidenceMap, e.AnswerSummary, e.CreatedAt)
	if err != nil {
		metrics.MemoryWrites.WithLabelValues("postgres", "error").Inc()
		return fmt.Errorf("archive consultation: %w", err)
	}
	metrics.MemoryWrites.WithLabelValues("postgres", "ok").Inc()
	return nil
}

type archiveRow struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	QueryHash     string    `db:"query_hash"`
	Query         string    `db:"query"`
	MindMap       []byte    `db:"mind_map"`
	SubQuestions  []byte    `db:"sub_questions"`
	EvidenceMap   []byte    `db:"evidence_map"`
	AnswerSummary string    `db:"answer_summary"`
	CreatedAt     time.Time `db:"created_at"`
}

// RecentByTenant lists the newest archived consultations for one tenant.
func (a *PostgresArchive) RecentByTenant(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []archiveRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT id, tenant_id, query_hash, query, mind_map, sub_questions, evidence_map, answer_summary, created_at
		FROM consultation_archive
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived consultations: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			ID:            r.ID,
			TenantID:      r.TenantID,
			QueryHash:     r.QueryHash,
			Query:         r.Query,
			AnswerSummary: r.AnswerSummary,
			CreatedAt:     r.CreatedAt,
		}
		if len(r.MindMap) > 0 {
			if err := json.Unmarshal(r.MindMap, &e.MindMap); err != nil {
				a.logger.Warn("Skipping unreadable mind map", zap.String("id", r.ID), zap.Error(err))
			}
		}
		if len(r.SubQuestions) > 0 {
			if err := json.Unmarshal(r.SubQuestions, &e.SubQuestions); err != nil {
				a.logger.Warn("Skipping unreadable sub questions", zap.String("id", r.ID), zap.Error(err))
			}
		}
		if len(r.EvidenceMap) > 0 {
			if err := json.Unmarshal(r.EvidenceMap, &e.EvidenceMap); err != nil {
				a.logger.Warn("Skipping unreadable evidence map", zap.String("id", r.ID), zap.Error(err))
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the database pool.
func (a *PostgresArchive) Close() error { return a.db.Close() }

// Ping probes the backing database, used by health checks.
func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
