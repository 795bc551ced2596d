package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
)

// Claims recognised on incoming tokens.
const (
	ClaimUserID    = "user_id"
	ClaimRole      = "role"
	ClaimServiceID = "service_id"

	RoleAdmin = "admin"
)

type ctxKey struct{}

// Caller is the verified identity behind a request.
type Caller struct {
	PlayerID  string
	Admin     bool
	ServiceID string
}

func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs claims with the service key.
func (h *Handler) IssueToken(claims map[string]interface{}) (string, error) {
	_, token, err := h.tokenAuth.Encode(claims)
	return token, err
}

func claimString(claims map[string]interface{}, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Authenticator replaces jwtauth.Authenticator so rejections use the
// response envelope.
func (h *Handler) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			reason := "missing token"
			if err != nil {
				reason = err.Error()
			}
			h.fail(w, "Authenticator", apperr.Unauthenticatedf("%s", reason))
			return
		}

		c := Caller{
			PlayerID:  claimString(claims, ClaimUserID),
			Admin:     claimString(claims, ClaimRole) == RoleAdmin,
			ServiceID: claimString(claims, ClaimServiceID),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
	})
}

func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(ctxKey{}).(Caller)
	return c
}

func (h *Handler) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFrom(r.Context()).PlayerID == "" {
			h.fail(w, "requirePlayer", apperr.Unauthenticatedf("player token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFrom(r.Context()).Admin {
			h.fail(w, "requireAdmin", apperr.Unauthenticatedf("admin token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireService admits the payment collaborator and admins.
func (h *Handler) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := CallerFrom(r.Context())
		if c.ServiceID == "" && !c.Admin {
			h.fail(w, "requireService", apperr.Unauthenticatedf("service token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
