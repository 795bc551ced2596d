package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/service"
)

const maxBodyBytes = 4 << 10

// Services are the engine operations the transport exposes.
type Services struct {
	Rounds  *service.RoundService
	Codes   *service.CodeService
	Guesses *service.GuessService
	Hints   *service.HintService
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	upgrader  websocket.Upgrader
	svc       Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Error encoding response %s", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, code int, msg string, data interface{}) {
	h.CreateResponse(w, Response{Message: msg, Code: code, Data: data})
}

// fail writes err with the status of its kind. Internal errors are logged
// and their detail is not sent to the caller.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Errorf("Error [%s] %s", op, err)
	}
	status := apperr.HTTPStatus(kind)
	h.CreateResponse(w, Response{
		Message: http.StatusText(status),
		Code:    status,
		Error:   apperr.Message(err),
		Kind:    string(kind),
	})
}

// decode reads a small JSON body into v.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidArgumentf("request body is required")
		}
		return apperr.InvalidArgumentf("malformed request body: %s", err)
	}
	return nil
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, "game service is running", nil)
}
