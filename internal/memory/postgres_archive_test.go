package memory

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestArchive(t *testing.T) (*PostgresArchive, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresArchiveWithDB(sqlx.NewDb(db, "postgres"), zaptest.NewLogger(t)), mock
}

func TestArchiveInsert(t *testing.T) {
	archive, mock := newTestArchive(t)

	mock.ExpectExec("INSERT INTO consultation_archive").
		WithArgs(
			"entry-1", "tenant-a", "hash-1", "prescrição intercorrente",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"Cinco anos.", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := archive.Archive(context.Background(), Entry{
		ID:            "entry-1",
		TenantID:      "tenant-a",
		QueryHash:     "hash-1",
		Query:         "prescrição intercorrente",
		SubQuestions:  []string{"qual o prazo?"},
		AnswerSummary: "Cinco anos.",
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentByTenant(t *testing.T) {
	archive, mock := newTestArchive(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "query_hash", "query", "mind_map",
		"sub_questions", "evidence_map", "answer_summary", "created_at",
	}).AddRow(
		"entry-1", "tenant-a", "hash-1", "dano moral",
		[]byte(`{"tema":"responsabilidade civil"}`),
		[]byte(`["cabe dano moral?"]`),
		[]byte(`{"cabe dano moral?":["doc-1"]}`),
		"Cabe quando comprovado o abalo.", now,
	)

	mock.ExpectQuery("SELECT id, tenant_id, query_hash").
		WithArgs("tenant-a", 20).
		WillReturnRows(rows)

	entries, err := archive.RecentByTenant(context.Background(), "tenant-a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "entry-1", e.ID)
	assert.Equal(t, "responsabilidade civil", e.MindMap["tema"])
	assert.Equal(t, []string{"cabe dano moral?"}, e.SubQuestions)
	assert.Equal(t, []string{"doc-1"}, e.EvidenceMap["cabe dano moral?"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
