package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
)

const (
	wsReadLimit  = 4 << 10
	wsOpTimeout  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
)

// HandleWebSocket serves the player command channel. Every request frame
// gets exactly one response frame of type "<type>-response" or "error".
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := CallerFrom(r.Context()).PlayerID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	log.WithFields(log.Fields{"socket": socketId, "player": playerID}).Info("websocket connection established")

	go h.handleConnection(conn, socketId, playerID)
}

func (h *Handler) handleConnection(conn *websocket.Conn, socketId, playerID string) {
	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		log.Infof("Closing WebSocket connection: %s", socketId)
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// writes from the ping loop and the read loop must not interleave
	writes := make(chan *comm.WSMessage, 8)
	go h.writeLoop(conn, writes, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			return
		}

		msg := &comm.WSMessage{}
		var reply *comm.WSMessage
		if err := json.Unmarshal(raw, msg); err != nil {
			reply = errorMessage("", apperr.InvalidArgumentf("malformed message"))
		} else {
			reply = h.SocketMessage(playerID, msg)
		}
		reply.SocketId = socketId

		select {
		case writes <- reply:
		case <-time.After(wsWriteWait):
			log.Warnf("dropping slow WebSocket client %s", socketId)
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, writes <-chan *comm.WSMessage, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-writes:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Errorf("Error writing WebSocket message %s", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// SocketMessage runs one command for playerID and builds its reply.
func (h *Handler) SocketMessage(playerID string, msg *comm.WSMessage) *comm.WSMessage {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	var (
		data interface{}
		err  error
	)
	switch msg.Type {
	case comm.TypeRoundStatus:
		data, err = h.roundStatus(ctx)
	case comm.TypeAssignCode:
		data, err = h.assignCode(ctx, playerID)
	case comm.TypeMyCode:
		data, err = h.myCode(ctx, playerID)
	case comm.TypeSubmitGuess:
		var req comm.GuessRequest
		if err = json.Unmarshal(msg.Data, &req); err != nil {
			err = apperr.InvalidArgumentf("malformed %s payload", msg.Type)
			break
		}
		data, err = h.submitGuess(ctx, playerID, req)
	case comm.TypeRequestHint:
		data, err = h.requestHint(ctx, playerID)
	default:
		log.Warnf("unknown event received: %s", msg.Type)
		err = apperr.InvalidArgumentf("unknown message type %q", msg.Type)
	}

	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			log.Errorf("Error [SocketMessage %s] %s", msg.Type, err)
		}
		return errorMessage(msg.Type, err)
	}

	reply, err := comm.NewMessage(msg.Type+"-response", data, "")
	if err != nil {
		log.Errorf("Error marshalling %s response %s", msg.Type, err)
		return errorMessage(msg.Type, apperr.Internalf("encode response"))
	}
	return reply
}

func errorMessage(typ string, err error) *comm.WSMessage {
	body := struct {
		For string `json:"for,omitempty"`
		comm.ErrorBody
	}{
		For:       typ,
		ErrorBody: comm.ErrorBody{Kind: string(apperr.KindOf(err)), Message: apperr.Message(err)},
	}
	raw, _ := json.Marshal(body)
	return &comm.WSMessage{Type: comm.TypeError, Data: raw}
}
