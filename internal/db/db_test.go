package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Pool = pgxmock.PgxPoolIface(nil)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "stations", []string{"a"}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"gbfs", "stations"}, []string{"a", "b"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "gbfs.stations", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"stations"}, []string{"a"}).WillReturnError(errors.New("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "stations", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO stations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{
		Table:        "gbfs.systems",
		Columns:      []string{"tag", "name", "feed_url"},
		ConflictKeys: []string{"tag"},
	}
	assert.Equal(t, "_tmp_upsert_gbfs_systems", cfg.TempTable())

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{cfg.TempTable()}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "gbfs"."systems" .* ON CONFLICT \("tag"\) DO UPDATE SET "name" = EXCLUDED."name", "feed_url" = EXCLUDED."feed_url"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"a", "A", "u1"}, {"b", "B", "u2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_KeysOnlyDoesNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{Table: "tags", Columns: []string{"tag"}, ConflictKeys: []string{"tag"}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{cfg.TempTable()}, cfg.Columns).WillReturnResult(1)
	mock.ExpectExec("ON CONFLICT .* DO NOTHING").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = BulkUpsert(context.Background(), mock, cfg, [][]any{{"a"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	ctx := context.Background()
	n, err := BulkUpsert(ctx, nil, UpsertConfig{}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = BulkUpsert(ctx, nil, UpsertConfig{Table: "t"}, [][]any{{1}})
	assert.ErrorContains(t, err, "no columns")

	_, err = BulkUpsert(ctx, nil, UpsertConfig{Table: "t", Columns: []string{"a"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no conflict keys")
}

func TestBulkUpsert_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{Table: "stations", Columns: []string{"id", "bikes"}, ConflictKeys: []string{"id"}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{cfg.TempTable()}, cfg.Columns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, cfg, [][]any{{"a", 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for stations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTx_LeavesCommitToCaller(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	cfg := UpsertConfig{Table: "gbfs.systems", Columns: []string{"tag", "name"}, ConflictKeys: []string{"tag"}}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{cfg.TempTable()}, cfg.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "gbfs"."systems"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	n, err := UpsertTx(ctx, tx, cfg, [][]any{{"a", "A"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
