package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// fakeTx records the transaction lifecycle. Unused pgx.Tx methods panic
// through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	commitErr error
	execErr   error
	rowErr    error
	committed bool
	rolled    bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolled = true
	}
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), t.execErr
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{t.rowErr}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type fakePool struct {
	txs   []*fakeTx
	opts  []pgx.TxOptions
	newTx func() *fakeTx
}

func (p *fakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	if p.newTx != nil {
		tx = p.newTx()
	}
	p.txs = append(p.txs, tx)
	p.opts = append(p.opts, opts)
	return tx, nil
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func pgErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "fabricated"}
}

func TestPgRetryableCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want bool
	}{
		{pgErr("40001"), true},
		{pgErr("40P01"), true},
		{mapWriteErr("update round", pgErr("40001")), true},
		{pgErr("23505"), false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, isRetryable(tt.err), "%v", tt.err)
	}
}

func TestPgMapErrors(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, mapWriteErr("insert code", pgErr("23505")), ErrConflict)

	ser := mapWriteErr("insert code", pgErr("40001"))
	require.NotErrorIs(t, ser, ErrConflict)
	require.True(t, isRetryable(ser))

	require.ErrorIs(t, mapReadErr("select round", pgx.ErrNoRows), ErrNotFound)
	other := mapReadErr("select round", errors.New("conn reset"))
	require.NotErrorIs(t, other, ErrNotFound)
	require.ErrorContains(t, other, "select round")
}

func TestPgRunInTxRetriesSerializationFailures(t *testing.T) {
	pool := &fakePool{}
	s := &PgStore{db: pool}

	calls := 0
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		calls++
		if calls < 3 {
			return mapWriteErr("update round", pgErr("40001"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, pool.txs, 3)
	for i, tx := range pool.txs {
		require.Equal(t, pgx.Serializable, pool.opts[i].IsoLevel)
		require.Equal(t, i == 2, tx.committed)
		require.Equal(t, i < 2, tx.rolled)
	}
}

func TestPgRunInTxRetriesCommitFailure(t *testing.T) {
	pool := &fakePool{}
	pool.newTx = func() *fakeTx {
		if len(pool.txs) == 0 {
			return &fakeTx{commitErr: pgErr("40001")}
		}
		return &fakeTx{}
	}
	s := &PgStore{db: pool}

	calls := 0
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestPgRunInTxGivesUp(t *testing.T) {
	pool := &fakePool{}
	s := &PgStore{db: pool}

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return pgErr("40P01")
	})
	require.ErrorContains(t, err, "retries exhausted")
	var pe *pgconn.PgError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pool.txs, pgMaxRetries)
}

func TestPgRunInTxDoesNotRetryOtherErrors(t *testing.T) {
	pool := &fakePool{}
	s := &PgStore{db: pool}

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, pool.txs, 1)
	require.True(t, pool.txs[0].rolled)
	require.False(t, pool.txs[0].committed)
}

func TestPgTxMapsConstraintViolations(t *testing.T) {
	ctx := context.Background()

	dup := &pgTx{tx: &fakeTx{execErr: pgErr("23505")}}
	err := dup.InsertRound(ctx, &models.Round{ID: "r2", RoundNo: 2, IsActive: true})
	require.ErrorIs(t, err, ErrConflict)

	missing := &pgTx{tx: &fakeTx{rowErr: pgx.ErrNoRows}}
	_, err = missing.LastRound(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = missing.PaymentByID(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
