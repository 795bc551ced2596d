package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

const pgMaxRetries = 5

// Schema is applied by EnsureSchema; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rounds (
  id           TEXT PRIMARY KEY,
  round_no     BIGINT NOT NULL UNIQUE,
  is_active    BOOLEAN NOT NULL,
  winner_count INT NOT NULL DEFAULT 0,
  winner_quota INT NOT NULL,
  started_at   TIMESTAMPTZ NOT NULL,
  ended_at     TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS one_active_round ON rounds (is_active) WHERE is_active;

CREATE TABLE IF NOT EXISTS players (
  id                         TEXT PRIMARY KEY,
  current_round_id           TEXT NOT NULL DEFAULT '',
  is_winner_in_current_round BOOLEAN NOT NULL DEFAULT false,
  hint_count                 INT NOT NULL DEFAULT 0,
  attempt_count              INT NOT NULL DEFAULT 0,
  last_attempt_at            TIMESTAMPTZ,
  last_hint_at               TIMESTAMPTZ,
  revealed_digits            JSONB NOT NULL DEFAULT '[]',
  created_at                 TIMESTAMPTZ NOT NULL,
  updated_at                 TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_codes (
  id                 TEXT PRIMARY KEY,
  player_id          TEXT NOT NULL,
  round_id           TEXT NOT NULL REFERENCES rounds(id),
  code               TEXT NOT NULL,
  attempts           INT NOT NULL DEFAULT 0,
  hint_purchases     INT NOT NULL DEFAULT 0,
  revealed_positions INT[] NOT NULL DEFAULT '{}',
  is_winner          BOOLEAN NOT NULL DEFAULT false,
  created_at         TIMESTAMPTZ NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL,
  CONSTRAINT unique_round_player UNIQUE (round_id, player_id),
  CONSTRAINT unique_round_code UNIQUE (round_id, code)
);

CREATE TABLE IF NOT EXISTS winners (
  id            TEXT PRIMARY KEY,
  round_id      TEXT NOT NULL REFERENCES rounds(id),
  player_id     TEXT NOT NULL,
  rank          INT NOT NULL,
  code_snapshot TEXT NOT NULL,
  won_at        TIMESTAMPTZ NOT NULL,
  CONSTRAINT unique_round_rank UNIQUE (round_id, rank)
);

CREATE TABLE IF NOT EXISTS payment_requests (
  id                    TEXT PRIMARY KEY,
  player_id             TEXT NOT NULL,
  round_id              TEXT NOT NULL REFERENCES rounds(id),
  price                 NUMERIC(12,2) NOT NULL,
  status                TEXT NOT NULL,
  requested_digit_index INT NOT NULL,
  hint_provided         BOOLEAN NOT NULL DEFAULT false,
  external_tx_id        TEXT NOT NULL DEFAULT '',
  failure_reason        TEXT NOT NULL DEFAULT '',
  created_at            TIMESTAMPTZ NOT NULL,
  updated_at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_requests_player_round ON payment_requests (player_id, round_id);
`

// pgDB is the part of *pgxpool.Pool the store uses.
type pgDB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgStore struct {
	db pgDB
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in a SERIALIZABLE transaction and re-runs it from scratch
// when postgres aborts it with a serialization failure or deadlock.
func (s *PgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < pgMaxRetries; attempt++ {
		err = s.runOnce(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (s *PgStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// mapWriteErr turns unique violations into ErrConflict but keeps
// serialization failures visible to the retry loop.
func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapReadErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgTx struct {
	tx pgx.Tx
}

const roundColumns = `id, round_no, is_active, winner_count, winner_quota, started_at, ended_at`

func scanRound(row pgx.Row) (*models.Round, error) {
	r := &models.Round{}
	err := row.Scan(&r.ID, &r.RoundNo, &r.IsActive, &r.WinnerCount, &r.WinnerQuota, &r.StartedAt, &r.EndedAt)
	return r, err
}

func (t *pgTx) ActiveRound(ctx context.Context) (*models.Round, error) {
	r, err := scanRound(t.tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE is_active LIMIT 1`))
	if err != nil {
		return nil, mapReadErr("select active round", err)
	}
	return r, nil
}

func (t *pgTx) RoundByID(ctx context.Context, id string) (*models.Round, error) {
	r, err := scanRound(t.tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadErr("select round", err)
	}
	return r, nil
}

func (t *pgTx) LastRound(ctx context.Context) (*models.Round, error) {
	r, err := scanRound(t.tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds ORDER BY round_no DESC LIMIT 1`))
	if err != nil {
		return nil, mapReadErr("select last round", err)
	}
	return r, nil
}

func (t *pgTx) InsertRound(ctx context.Context, r *models.Round) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.RoundNo, r.IsActive, r.WinnerCount, r.WinnerQuota, r.StartedAt, r.EndedAt)
	if err != nil {
		return mapWriteErr("insert round", err)
	}
	return nil
}

func (t *pgTx) UpdateRound(ctx context.Context, r *models.Round) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rounds
		SET is_active = $2, winner_count = $3, ended_at = $4
		WHERE id = $1
	`, r.ID, r.IsActive, r.WinnerCount, r.EndedAt)
	if err != nil {
		return mapWriteErr("update round", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) PlayerByID(ctx context.Context, id string) (*models.Player, error) {
	p := &models.Player{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, current_round_id, is_winner_in_current_round, hint_count, attempt_count,
		       last_attempt_at, last_hint_at, revealed_digits, created_at, updated_at
		FROM players
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.CurrentRoundID,
		&p.IsWinnerInCurrentRound,
		&p.HintCount,
		&p.AttemptCount,
		&p.LastAttemptAt,
		&p.LastHintAt,
		&p.RevealedDigits,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapReadErr("select player", err)
	}
	return p, nil
}

func (t *pgTx) SavePlayer(ctx context.Context, p *models.Player) error {
	revealed := p.RevealedDigits
	if revealed == nil {
		revealed = []models.RevealedDigit{}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO players (id, current_round_id, is_winner_in_current_round, hint_count, attempt_count,
		                     last_attempt_at, last_hint_at, revealed_digits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		  current_round_id = EXCLUDED.current_round_id,
		  is_winner_in_current_round = EXCLUDED.is_winner_in_current_round,
		  hint_count = EXCLUDED.hint_count,
		  attempt_count = EXCLUDED.attempt_count,
		  last_attempt_at = EXCLUDED.last_attempt_at,
		  last_hint_at = EXCLUDED.last_hint_at,
		  revealed_digits = EXCLUDED.revealed_digits,
		  updated_at = EXCLUDED.updated_at
	`, p.ID, p.CurrentRoundID, p.IsWinnerInCurrentRound, p.HintCount, p.AttemptCount,
		p.LastAttemptAt, p.LastHintAt, revealed, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteErr("upsert player", err)
	}
	return nil
}

func (t *pgTx) UserCode(ctx context.Context, playerID, roundID string) (*models.UserCode, error) {
	c := &models.UserCode{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, player_id, round_id, code, attempts, hint_purchases, revealed_positions,
		       is_winner, created_at, updated_at
		FROM user_codes
		WHERE player_id = $1 AND round_id = $2
	`, playerID, roundID).Scan(
		&c.ID,
		&c.PlayerID,
		&c.RoundID,
		&c.Code,
		&c.Attempts,
		&c.HintPurchases,
		&c.RevealedPositions,
		&c.IsWinner,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, mapReadErr("select user code", err)
	}
	return c, nil
}

func (t *pgTx) CodeTaken(ctx context.Context, roundID, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_codes WHERE round_id = $1 AND code = $2)`,
		roundID, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("code uniqueness check: %w", err)
	}
	return exists, nil
}

func positions(c *models.UserCode) []int {
	if c.RevealedPositions == nil {
		return []int{}
	}
	return c.RevealedPositions
}

func (t *pgTx) InsertUserCode(ctx context.Context, c *models.UserCode) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_codes (id, player_id, round_id, code, attempts, hint_purchases,
		                        revealed_positions, is_winner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.PlayerID, c.RoundID, c.Code, c.Attempts, c.HintPurchases,
		positions(c), c.IsWinner, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert user code", err)
	}
	return nil
}

func (t *pgTx) UpdateUserCode(ctx context.Context, c *models.UserCode) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_codes
		SET attempts = $2, hint_purchases = $3, revealed_positions = $4, is_winner = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.Attempts, c.HintPurchases, positions(c), c.IsWinner, c.UpdatedAt)
	if err != nil {
		return mapWriteErr("update user code", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertWinner(ctx context.Context, w *models.Winner) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO winners (id, round_id, player_id, rank, code_snapshot, won_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.RoundID, w.PlayerID, w.Rank, w.CodeSnapshot, w.WonAt)
	if err != nil {
		return mapWriteErr("insert winner", err)
	}
	return nil
}

func (t *pgTx) Winners(ctx context.Context, roundID string) ([]*models.Winner, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, round_id, player_id, rank, code_snapshot, won_at
		FROM winners
		WHERE round_id = $1
		ORDER BY rank
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("select winners: %w", err)
	}
	defer rows.Close()

	var winners []*models.Winner
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.ID, &w.RoundID, &w.PlayerID, &w.Rank, &w.CodeSnapshot, &w.WonAt); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		winners = append(winners, &w)
	}
	return winners, rows.Err()
}

const paymentColumns = `id, player_id, round_id, price, status, requested_digit_index, hint_provided,
	external_tx_id, failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.PaymentRequest, error) {
	p := &models.PaymentRequest{}
	err := row.Scan(
		&p.ID,
		&p.PlayerID,
		&p.RoundID,
		&p.Price,
		&p.Status,
		&p.RequestedDigitIndex,
		&p.HintProvided,
		&p.ExternalTxID,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (t *pgTx) PaymentByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadErr("select payment request", err)
	}
	return p, nil
}

func (t *pgTx) PendingPayments(ctx context.Context, playerID, roundID string) ([]*models.PaymentRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payment_requests
		WHERE player_id = $1 AND round_id = $2 AND status = $3
		ORDER BY created_at
	`, playerID, roundID, models.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("select pending payments: %w", err)
	}
	defer rows.Close()

	var out []*models.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment request: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertPayment(ctx context.Context, p *models.PaymentRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payment_requests (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.PlayerID, p.RoundID, p.Price, p.Status, p.RequestedDigitIndex, p.HintProvided,
		p.ExternalTxID, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert payment request", err)
	}
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *models.PaymentRequest) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payment_requests
		SET status = $2, hint_provided = $3, external_tx_id = $4, failure_reason = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Status, p.HintProvided, p.ExternalTxID, p.FailureReason, p.UpdatedAt)
	if err != nil {
		return mapWriteErr("update payment request", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
