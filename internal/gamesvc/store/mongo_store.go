package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

const (
	RoundsCollection   = "rounds"
	PlayersCollection  = "players"
	CodesCollection    = "user_codes"
	WinnersCollection  = "winners"
	PaymentsCollection = "payment_requests"
)

// MongoStore needs a replica set (or sharded cluster); standalone servers
// do not support multi-document transactions.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// RunInTx uses the driver's WithTransaction, which retries fn on
// TransientTransactionError (write conflicts) and retries the commit on
// UnknownTransactionCommitResult.
func (s *MongoStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{db: s.db})
	}, txOpts)
	return err
}

type mongoTx struct {
	db *mongo.Database
}

func (t *mongoTx) col(name string) *mongo.Collection {
	return t.db.Collection(name)
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var v T
	err := c.FindOne(ctx, filter, opts...).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find in %s: %w", c.Name(), err)
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter interface{}, sort bson.D) ([]*T, error) {
	cur, err := c.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.Name(), err)
	}
	var out []*T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return out, nil
}

// mapMongoWriteErr turns duplicate key errors into ErrConflict. Other errors
// keep their labels so WithTransaction can still retry transient ones.
func mapMongoWriteErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func insert(ctx context.Context, c *mongo.Collection, doc interface{}) error {
	if _, err := c.InsertOne(ctx, doc); err != nil {
		return mapMongoWriteErr("insert into "+c.Name(), err)
	}
	return nil
}

func replace(ctx context.Context, c *mongo.Collection, id string, doc interface{}, upsert bool) error {
	res, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(upsert))
	if err != nil {
		return mapMongoWriteErr("replace in "+c.Name(), err)
	}
	if !upsert && res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *mongoTx) ActiveRound(ctx context.Context) (*models.Round, error) {
	return findOne[models.Round](ctx, t.col(RoundsCollection), bson.M{"is_active": true})
}

func (t *mongoTx) RoundByID(ctx context.Context, id string) (*models.Round, error) {
	return findOne[models.Round](ctx, t.col(RoundsCollection), bson.M{"_id": id})
}

func (t *mongoTx) LastRound(ctx context.Context) (*models.Round, error) {
	return findOne[models.Round](ctx, t.col(RoundsCollection), bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "round_no", Value: -1}}))
}

func (t *mongoTx) InsertRound(ctx context.Context, r *models.Round) error {
	return insert(ctx, t.col(RoundsCollection), r)
}

func (t *mongoTx) UpdateRound(ctx context.Context, r *models.Round) error {
	return replace(ctx, t.col(RoundsCollection), r.ID, r, false)
}

func (t *mongoTx) PlayerByID(ctx context.Context, id string) (*models.Player, error) {
	return findOne[models.Player](ctx, t.col(PlayersCollection), bson.M{"_id": id})
}

func (t *mongoTx) SavePlayer(ctx context.Context, p *models.Player) error {
	return replace(ctx, t.col(PlayersCollection), p.ID, p, true)
}

func (t *mongoTx) UserCode(ctx context.Context, playerID, roundID string) (*models.UserCode, error) {
	return findOne[models.UserCode](ctx, t.col(CodesCollection), bson.M{"player_id": playerID, "round_id": roundID})
}

func (t *mongoTx) CodeTaken(ctx context.Context, roundID, code string) (bool, error) {
	n, err := t.col(CodesCollection).CountDocuments(ctx,
		bson.M{"round_id": roundID, "code": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count codes: %w", err)
	}
	return n > 0, nil
}

func (t *mongoTx) InsertUserCode(ctx context.Context, c *models.UserCode) error {
	return insert(ctx, t.col(CodesCollection), c)
}

func (t *mongoTx) UpdateUserCode(ctx context.Context, c *models.UserCode) error {
	return replace(ctx, t.col(CodesCollection), c.ID, c, false)
}

func (t *mongoTx) InsertWinner(ctx context.Context, w *models.Winner) error {
	return insert(ctx, t.col(WinnersCollection), w)
}

func (t *mongoTx) Winners(ctx context.Context, roundID string) ([]*models.Winner, error) {
	return findAll[models.Winner](ctx, t.col(WinnersCollection),
		bson.M{"round_id": roundID}, bson.D{{Key: "rank", Value: 1}})
}

func (t *mongoTx) PaymentByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	return findOne[models.PaymentRequest](ctx, t.col(PaymentsCollection), bson.M{"_id": id})
}

func (t *mongoTx) PendingPayments(ctx context.Context, playerID, roundID string) ([]*models.PaymentRequest, error) {
	return findAll[models.PaymentRequest](ctx, t.col(PaymentsCollection),
		bson.M{"player_id": playerID, "round_id": roundID, "status": models.PaymentPending},
		bson.D{{Key: "created_at", Value: 1}})
}

func (t *mongoTx) InsertPayment(ctx context.Context, p *models.PaymentRequest) error {
	return insert(ctx, t.col(PaymentsCollection), p)
}

func (t *mongoTx) UpdatePayment(ctx context.Context, p *models.PaymentRequest) error {
	return replace(ctx, t.col(PaymentsCollection), p.ID, p, false)
}
