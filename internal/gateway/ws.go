package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/badukhouse/baduk-server/internal/obslog"
	"github.com/badukhouse/baduk-server/internal/room"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// wsOp is one client frame. Type selects the operation; the remaining fields
// are read per-type.
type wsOp struct {
	Type          string `json:"type"` // move | state | nudge
	BoardState    string `json:"boardState"`
	Turn          string `json:"turn"`
	IsGameOver    bool   `json:"isGameOver"`
	Winner        string `json:"winner"`
	Status        string `json:"status"`
	CapturedBlack *int   `json:"capturedBlack"`
	CapturedWhite *int   `json:"capturedWhite"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWS attaches a player to a room channel. Incoming frames drive the
// orchestrator; every snapshot published to the room is relayed back out.
// Closing the socket, however it happens, runs the disconnect policy.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if roomID == "" || userID == "" {
		http.Error(w, "roomId and userId are required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection torn down")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.broker.Subscribe(ctx, roomID)
	if err != nil {
		obslog.L().Error("ws_subscribe_error", zap.String("room_id", roomID), zap.Error(err))
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer sub.Close()

	obslog.L().Info("ws_attach",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)

	// writer: relay room events until the subscription or socket dies
	go func() {
		for ev := range sub.C {
			if err := conn.Write(ctx, websocket.MessageText, ev.Payload); err != nil {
				cancel()
				return
			}
		}
	}()

	s.readLoop(ctx, conn, roomID, userID)

	// the disconnect policy must run even though the request context is gone
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	if err := s.mgr.HandleDisconnect(dctx, userID); err != nil {
		obslog.L().Error("ws_disconnect_error",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	obslog.L().Info("ws_detach",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, roomID, userID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var op wsOp
		if err := json.Unmarshal(data, &op); err != nil {
			s.sendError(ctx, conn, "malformed frame")
			continue
		}
		if err := s.dispatch(ctx, roomID, userID, op); err != nil {
			s.sendError(ctx, conn, err.Error())
		}
	}
}

// dispatch applies one frame. Snapshots returned by move/state are relayed to
// the whole room by publishing them here; a nudge is relayed only when the
// orchestrator produced a reminder message.
func (s *Server) dispatch(ctx context.Context, roomID, userID string, op wsOp) error {
	switch op.Type {
	case "move":
		snap, err := s.mgr.SubmitMove(ctx, roomID, userID, op.BoardState,
			room.Color(op.Turn), op.CapturedBlack, op.CapturedWhite)
		if err != nil {
			return err
		}
		return s.broker.Publish(ctx, roomID, snap)

	case "state":
		snap, err := s.mgr.UpdateGameState(ctx, roomID, op.BoardState,
			room.Color(op.Turn), op.IsGameOver, op.Winner,
			room.Status(op.Status), op.CapturedBlack, op.CapturedWhite)
		if err != nil {
			return err
		}
		return s.broker.Publish(ctx, roomID, snap)

	case "nudge":
		snap, err := s.mgr.Nudge(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if snap.Message == "" {
			return nil
		}
		return s.broker.Publish(ctx, roomID, snap)
	}

	obslog.L().Warn("ws_unknown_op",
		zap.String("room_id", roomID),
		zap.String("type", op.Type),
	)
	return nil
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, err := json.Marshal(wsError{Type: "error", Error: msg})
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
