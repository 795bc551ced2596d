package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
)

// parseGuess turns "0123456" into digits. Length is checked by the engine.
func parseGuess(s string) ([]int, error) {
	out := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, apperr.InvalidArgumentf("guess must contain digits only")
		}
		out[i] = int(s[i] - '0')
	}
	return out, nil
}

func (h *Handler) roundStatus(ctx context.Context) (*comm.RoundStatus, error) {
	r, err := h.svc.Rounds.ActiveRound(ctx)
	if err != nil {
		return nil, err
	}
	st := comm.NewRoundStatus(r)
	return &st, nil
}

func (h *Handler) assignCode(ctx context.Context, playerID string) (*comm.Assignment, error) {
	a, err := h.svc.Codes.AssignCode(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &comm.Assignment{RoundID: a.RoundID, RoundNo: a.RoundNo, AlreadyAssigned: a.AlreadyAssigned}, nil
}

func (h *Handler) myCode(ctx context.Context, playerID string) (*comm.CodeView, error) {
	v, err := h.svc.Codes.MyCode(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &comm.CodeView{
		RoundID:       v.RoundID,
		RoundNo:       v.RoundNo,
		Attempts:      v.Attempts,
		HintPurchases: v.HintPurchases,
		Revealed:      v.Revealed,
		IsWinner:      v.IsWinner,
	}, nil
}

func (h *Handler) submitGuess(ctx context.Context, playerID string, req comm.GuessRequest) (*comm.GuessResult, error) {
	guess, err := parseGuess(req.Guess)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.Guesses.SubmitGuess(ctx, playerID, guess)
	if err != nil {
		return nil, err
	}
	return &comm.GuessResult{Correct: res.Correct, RoundEnded: res.RoundEnded, WinnerRank: res.WinnerRank}, nil
}

func (h *Handler) requestHint(ctx context.Context, playerID string) (*comm.HintRequest, error) {
	req, err := h.svc.Hints.RequestHint(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &comm.HintRequest{
		PaymentRequestID: req.PaymentRequestID,
		RoundID:          req.RoundID,
		Price:            req.Price.StringFixed(2),
	}, nil
}

func (h *Handler) RoundStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.roundStatus(r.Context())
	if err != nil {
		h.fail(w, "RoundService.ActiveRound", err)
		return
	}
	h.ok(w, http.StatusOK, "active round", st)
}

func (h *Handler) StartRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.Rounds.StartRound(r.Context())
	if err != nil {
		h.fail(w, "RoundService.StartRound", err)
		return
	}
	h.ok(w, http.StatusCreated, "round started", comm.NewRoundStatus(round))
}

func (h *Handler) FinishRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.Rounds.EndRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "RoundService.EndRound", err)
		return
	}
	h.ok(w, http.StatusOK, "round finished", comm.NewRoundStatus(round))
}

func (h *Handler) Winners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.svc.Rounds.Winners(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "RoundService.Winners", err)
		return
	}
	out := make([]comm.Winner, 0, len(winners))
	for _, wn := range winners {
		out = append(out, comm.Winner{Rank: wn.Rank, PlayerID: wn.PlayerID, CodeSnapshot: wn.CodeSnapshot, WonAt: wn.WonAt})
	}
	h.ok(w, http.StatusOK, "winners", out)
}

func (h *Handler) AssignCode(w http.ResponseWriter, r *http.Request) {
	a, err := h.assignCode(r.Context(), CallerFrom(r.Context()).PlayerID)
	if err != nil {
		h.fail(w, "CodeService.AssignCode", err)
		return
	}
	msg := "code assigned"
	if a.AlreadyAssigned {
		msg = "code already assigned"
	}
	h.ok(w, http.StatusOK, msg, a)
}

func (h *Handler) MyCode(w http.ResponseWriter, r *http.Request) {
	v, err := h.myCode(r.Context(), CallerFrom(r.Context()).PlayerID)
	if err != nil {
		h.fail(w, "CodeService.MyCode", err)
		return
	}
	h.ok(w, http.StatusOK, "code progress", v)
}

func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req comm.GuessRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, "SubmitGuess", err)
		return
	}
	res, err := h.submitGuess(r.Context(), CallerFrom(r.Context()).PlayerID, req)
	if err != nil {
		h.fail(w, "GuessService.SubmitGuess", err)
		return
	}
	h.ok(w, http.StatusOK, "guess evaluated", res)
}

func (h *Handler) RequestHint(w http.ResponseWriter, r *http.Request) {
	req, err := h.requestHint(r.Context(), CallerFrom(r.Context()).PlayerID)
	if err != nil {
		h.fail(w, "HintService.RequestHint", err)
		return
	}
	h.ok(w, http.StatusCreated, "payment pending", req)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req comm.PaymentConfirmation
	if err := decode(r, &req); err != nil {
		h.fail(w, "ConfirmPayment", err)
		return
	}
	res, err := h.svc.Hints.ConfirmPayment(r.Context(), req.PaymentRequestID, req.ExternalTxID)
	if err != nil {
		h.fail(w, "HintService.ConfirmPayment", err)
		return
	}
	h.ok(w, http.StatusOK, "payment confirmed", comm.PaymentReply{
		PaymentRequestID: res.PaymentRequestID,
		OK:               true,
		AlreadyProcessed: res.AlreadyProcessed,
	})
}

func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	var req comm.PaymentFailure
	if err := decode(r, &req); err != nil {
		h.fail(w, "FailPayment", err)
		return
	}
	already, err := h.svc.Hints.FailPayment(r.Context(), req.PaymentRequestID, req.Reason)
	if err != nil {
		h.fail(w, "HintService.FailPayment", err)
		return
	}
	h.ok(w, http.StatusOK, "payment failed", comm.PaymentReply{
		PaymentRequestID: req.PaymentRequestID,
		OK:               true,
		AlreadyProcessed: already,
	})
}
