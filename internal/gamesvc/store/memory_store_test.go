package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

func seedRound(t *testing.T, s *MemoryStore, id string, no int64, active bool) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertRound(ctx, &models.Round{ID: id, RoundNo: no, IsActive: active, WinnerQuota: 10, StartedAt: time.Now()})
	})
	require.NoError(t, err)
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertRound(ctx, &models.Round{ID: "r1", RoundNo: 1, IsActive: true}))
		// visible inside the transaction
		r, err := tx.ActiveRound(ctx)
		require.NoError(t, err)
		require.Equal(t, "r1", r.ID)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.ActiveRound(ctx)
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestMemoryStoreCancelBeforeCommit(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		cancel()
		return tx.InsertRound(ctx, &models.Round{ID: "r1", RoundNo: 1, IsActive: true})
	})
	require.ErrorIs(t, err, context.Canceled)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LastRound(ctx)
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSingleActiveRound(t *testing.T) {
	s := NewMemoryStore()
	seedRound(t, s, "r1", 1, true)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertRound(ctx, &models.Round{ID: "r2", RoundNo: 2, IsActive: true})
	})
	require.ErrorIs(t, err, ErrConflict)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertRound(ctx, &models.Round{ID: "r3", RoundNo: 1})
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreUniqueCodes(t *testing.T) {
	s := NewMemoryStore()
	seedRound(t, s, "r1", 1, true)

	insert := func(id, player, code string) error {
		return s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.InsertUserCode(ctx, &models.UserCode{ID: id, PlayerID: player, RoundID: "r1", Code: code})
		})
	}

	require.NoError(t, insert("c1", "alice", "0123456"))
	require.ErrorIs(t, insert("c2", "bob", "0123456"), ErrConflict)
	require.ErrorIs(t, insert("c3", "alice", "6543210"), ErrConflict)
	require.NoError(t, insert("c4", "bob", "6543210"))

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		taken, err := tx.CodeTaken(ctx, "r1", "0123456")
		require.True(t, taken)
		return err
	})
	require.NoError(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	seedRound(t, s, "r1", 1, true)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertUserCode(ctx, &models.UserCode{ID: "c1", PlayerID: "alice", RoundID: "r1", Code: "0123456"}))
		uc, err := tx.UserCode(ctx, "alice", "r1")
		require.NoError(t, err)
		uc.Reveal(3)
		uc.Attempts = 5
		return nil
	})
	require.NoError(t, err)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		uc, err := tx.UserCode(ctx, "alice", "r1")
		require.NoError(t, err)
		require.Empty(t, uc.RevealedPositions)
		require.Zero(t, uc.Attempts)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreWinnersOrderedByRank(t *testing.T) {
	s := NewMemoryStore()
	seedRound(t, s, "r1", 1, true)

	err := s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, rank := range []int{3, 1, 2} {
			w := &models.Winner{ID: "w" + string(rune('0'+rank)), RoundID: "r1", PlayerID: "p", Rank: rank}
			if err := tx.InsertWinner(ctx, w); err != nil {
				return err
			}
		}
		return tx.InsertWinner(ctx, &models.Winner{ID: "dup", RoundID: "r1", Rank: 2})
	})
	require.ErrorIs(t, err, ErrConflict)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, rank := range []int{3, 1, 2} {
			w := &models.Winner{ID: "w" + string(rune('0'+rank)), RoundID: "r1", PlayerID: "p", Rank: rank}
			if err := tx.InsertWinner(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		ws, err := tx.Winners(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, ws, 3)
		for i, w := range ws {
			require.Equal(t, i+1, w.Rank)
		}
		return nil
	})
	require.NoError(t, err)
}
