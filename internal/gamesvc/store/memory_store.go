package store

import (
	"context"
	"sort"
	"sync"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// MemoryStore keeps every collection in process. Transactions hold a single
// lock for their whole duration, which makes them trivially serializable,
// and stage writes so a failed fn leaves nothing behind.
type MemoryStore struct {
	mu       sync.Mutex
	rounds   map[string]models.Round
	players  map[string]models.Player
	codes    map[string]models.UserCode
	winners  map[string]models.Winner
	payments map[string]models.PaymentRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds:   make(map[string]models.Round),
		players:  make(map[string]models.Player),
		codes:    make(map[string]models.UserCode),
		winners:  make(map[string]models.Winner),
		payments: make(map[string]models.PaymentRequest),
	}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:        s,
		rounds:   make(map[string]models.Round),
		players:  make(map[string]models.Player),
		codes:    make(map[string]models.UserCode),
		winners:  make(map[string]models.Winner),
		payments: make(map[string]models.PaymentRequest),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// abandoned before commit
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s        *MemoryStore
	rounds   map[string]models.Round
	players  map[string]models.Player
	codes    map[string]models.UserCode
	winners  map[string]models.Winner
	payments map[string]models.PaymentRequest
}

func (t *memTx) commit() {
	for k, v := range t.rounds {
		t.s.rounds[k] = v
	}
	for k, v := range t.players {
		t.s.players[k] = v
	}
	for k, v := range t.codes {
		t.s.codes[k] = v
	}
	for k, v := range t.winners {
		t.s.winners[k] = v
	}
	for k, v := range t.payments {
		t.s.payments[k] = v
	}
}

// merged views: staged writes shadow committed state

func (t *memTx) allRounds() map[string]models.Round {
	return overlay(t.s.rounds, t.rounds)
}

func (t *memTx) allCodes() map[string]models.UserCode {
	return overlay(t.s.codes, t.codes)
}

func overlay[V any](base, staged map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(staged))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range staged {
		out[k] = v
	}
	return out
}

func lookup[V any](base, staged map[string]V, id string) (V, bool) {
	if v, ok := staged[id]; ok {
		return v, true
	}
	v, ok := base[id]
	return v, ok
}

func (t *memTx) ActiveRound(ctx context.Context) (*models.Round, error) {
	for _, r := range t.allRounds() {
		if r.IsActive {
			return copyRound(r), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) RoundByID(ctx context.Context, id string) (*models.Round, error) {
	r, ok := lookup(t.s.rounds, t.rounds, id)
	if !ok {
		return nil, ErrNotFound
	}
	return copyRound(r), nil
}

func (t *memTx) LastRound(ctx context.Context) (*models.Round, error) {
	var last *models.Round
	for _, r := range t.allRounds() {
		if last == nil || r.RoundNo > last.RoundNo {
			last = copyRound(r)
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

func (t *memTx) InsertRound(ctx context.Context, r *models.Round) error {
	for _, existing := range t.allRounds() {
		if existing.ID == r.ID || existing.RoundNo == r.RoundNo || (existing.IsActive && r.IsActive) {
			return ErrConflict
		}
	}
	t.rounds[r.ID] = *copyRound(*r)
	return nil
}

func (t *memTx) UpdateRound(ctx context.Context, r *models.Round) error {
	if _, ok := lookup(t.s.rounds, t.rounds, r.ID); !ok {
		return ErrNotFound
	}
	t.rounds[r.ID] = *copyRound(*r)
	return nil
}

func (t *memTx) PlayerByID(ctx context.Context, id string) (*models.Player, error) {
	p, ok := lookup(t.s.players, t.players, id)
	if !ok {
		return nil, ErrNotFound
	}
	return copyPlayer(p), nil
}

func (t *memTx) SavePlayer(ctx context.Context, p *models.Player) error {
	t.players[p.ID] = *copyPlayer(*p)
	return nil
}

func (t *memTx) UserCode(ctx context.Context, playerID, roundID string) (*models.UserCode, error) {
	for _, c := range t.allCodes() {
		if c.PlayerID == playerID && c.RoundID == roundID {
			return copyCode(c), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CodeTaken(ctx context.Context, roundID, code string) (bool, error) {
	for _, c := range t.allCodes() {
		if c.RoundID == roundID && c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertUserCode(ctx context.Context, c *models.UserCode) error {
	for _, existing := range t.allCodes() {
		if existing.ID == c.ID || existing.RoundID == c.RoundID &&
			(existing.PlayerID == c.PlayerID || existing.Code == c.Code) {
			return ErrConflict
		}
	}
	t.codes[c.ID] = *copyCode(*c)
	return nil
}

func (t *memTx) UpdateUserCode(ctx context.Context, c *models.UserCode) error {
	if _, ok := lookup(t.s.codes, t.codes, c.ID); !ok {
		return ErrNotFound
	}
	t.codes[c.ID] = *copyCode(*c)
	return nil
}

func (t *memTx) InsertWinner(ctx context.Context, w *models.Winner) error {
	for _, existing := range overlay(t.s.winners, t.winners) {
		if existing.ID == w.ID || existing.RoundID == w.RoundID && existing.Rank == w.Rank {
			return ErrConflict
		}
	}
	t.winners[w.ID] = *w
	return nil
}

func (t *memTx) Winners(ctx context.Context, roundID string) ([]*models.Winner, error) {
	var out []*models.Winner
	for _, w := range overlay(t.s.winners, t.winners) {
		if w.RoundID == roundID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (t *memTx) PaymentByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	p, ok := lookup(t.s.payments, t.payments, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) PendingPayments(ctx context.Context, playerID, roundID string) ([]*models.PaymentRequest, error) {
	var out []*models.PaymentRequest
	for _, p := range overlay(t.s.payments, t.payments) {
		if p.PlayerID == playerID && p.RoundID == roundID && p.Status == models.PaymentPending {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) InsertPayment(ctx context.Context, p *models.PaymentRequest) error {
	if _, ok := lookup(t.s.payments, t.payments, p.ID); ok {
		return ErrConflict
	}
	t.payments[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePayment(ctx context.Context, p *models.PaymentRequest) error {
	if _, ok := lookup(t.s.payments, t.payments, p.ID); !ok {
		return ErrNotFound
	}
	t.payments[p.ID] = *p
	return nil
}

func copyRound(r models.Round) *models.Round {
	if r.EndedAt != nil {
		end := *r.EndedAt
		r.EndedAt = &end
	}
	return &r
}

func copyPlayer(p models.Player) *models.Player {
	if p.LastAttemptAt != nil {
		at := *p.LastAttemptAt
		p.LastAttemptAt = &at
	}
	if p.LastHintAt != nil {
		at := *p.LastHintAt
		p.LastHintAt = &at
	}
	p.RevealedDigits = append([]models.RevealedDigit(nil), p.RevealedDigits...)
	return &p
}

func copyCode(c models.UserCode) *models.UserCode {
	c.RevealedPositions = append([]int(nil), c.RevealedPositions...)
	return &c
}
