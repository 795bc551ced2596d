package store

import (
	"context"
	"errors"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write collides with a unique constraint
// (duplicate code in a round, second active round, ...).
var ErrConflict = errors.New("write conflict")

// Store runs fn as one serializable transaction. Either every write made
// through tx is committed or none is. Backends may run fn more than once
// when the database reports a retryable conflict, so fn must not have side
// effects outside tx.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the read/write set available inside a transaction. Returned records
// are copies; changes are only persisted by the matching Update/Save call.
type Tx interface {
	// ActiveRound returns the open round or ErrNotFound.
	ActiveRound(ctx context.Context) (*models.Round, error)
	RoundByID(ctx context.Context, id string) (*models.Round, error)
	// LastRound returns the round with the highest number, or ErrNotFound.
	LastRound(ctx context.Context) (*models.Round, error)
	InsertRound(ctx context.Context, r *models.Round) error
	UpdateRound(ctx context.Context, r *models.Round) error

	PlayerByID(ctx context.Context, id string) (*models.Player, error)
	SavePlayer(ctx context.Context, p *models.Player) error

	UserCode(ctx context.Context, playerID, roundID string) (*models.UserCode, error)
	CodeTaken(ctx context.Context, roundID, code string) (bool, error)
	InsertUserCode(ctx context.Context, c *models.UserCode) error
	UpdateUserCode(ctx context.Context, c *models.UserCode) error

	InsertWinner(ctx context.Context, w *models.Winner) error
	// Winners lists a round's winners ordered by rank.
	Winners(ctx context.Context, roundID string) ([]*models.Winner, error)

	PaymentByID(ctx context.Context, id string) (*models.PaymentRequest, error)
	// PendingPayments lists the player's pending requests in a round.
	PendingPayments(ctx context.Context, playerID, roundID string) ([]*models.PaymentRequest, error)
	InsertPayment(ctx context.Context, p *models.PaymentRequest) error
	UpdatePayment(ctx context.Context, p *models.PaymentRequest) error
}
