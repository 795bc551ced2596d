package handlers

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/round", h.RoundStatus)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(h.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(h.Authenticator)

			r.Group(func(r chi.Router) {
				r.Use(h.requirePlayer)

				r.Post("/code", h.AssignCode)
				r.Get("/code", h.MyCode)
				r.Post("/guess", h.SubmitGuess)
				r.Post("/hint", h.RequestHint)
				r.Get("/ws", h.HandleWebSocket)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)

				r.Post("/rounds", h.StartRound)
				r.Post("/rounds/{id}/finish", h.FinishRound)
				r.Get("/rounds/{id}/winners", h.Winners)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireService)

				r.Post("/payments/confirm", h.ConfirmPayment)
				r.Post("/payments/fail", h.FailPayment)
			})
		})
	})
}
