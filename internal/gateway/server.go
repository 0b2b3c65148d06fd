package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/badukhouse/baduk-server/internal/boardimg"
	"github.com/badukhouse/baduk-server/internal/commentary"
	"github.com/badukhouse/baduk-server/internal/history"
	"github.com/badukhouse/baduk-server/internal/notify"
	"github.com/badukhouse/baduk-server/internal/obslog"
	"github.com/badukhouse/baduk-server/internal/room"
	"github.com/badukhouse/baduk-server/internal/user"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP and websocket transport in front of the orchestrator.
// It owns subscription lifecycle and is the "caller" responsible for relaying
// the snapshots that move/state operations return.
type Server struct {
	mgr      *room.Manager
	users    user.Directory
	recorder history.Recorder
	broker   notify.Broker
	comments *commentary.Client
	srv      *http.Server
}

func New(addr string, mgr *room.Manager, users user.Directory, recorder history.Recorder, broker notify.Broker, comments *commentary.Client) *Server {
	s := &Server{
		mgr:      mgr,
		users:    users,
		recorder: recorder,
		broker:   broker,
		comments: comments,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/rooms", s.handleWaitingRooms)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGameState)
	mux.HandleFunc("POST /api/rooms/{id}/join", s.handleJoin)
	mux.HandleFunc("GET /api/rooms/{id}/board.png", s.handleBoardImage)
	mux.HandleFunc("GET /api/history/{userId}", s.handleHistory)
	mux.HandleFunc("POST /api/history/{userId}", s.handleSaveHistory)
	mux.HandleFunc("POST /api/ai/comment", s.handleComment)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	u, err := s.users.LoginOrRegister(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleWaitingRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.mgr.WaitingRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []room.Listing{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostID string `json:"hostId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.HostID) == "" {
		http.Error(w, "hostId is required", http.StatusBadRequest)
		return
	}
	rm, err := s.mgr.CreateRoom(r.Context(), req.HostID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.mgr.GameState(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuestID string `json:"guestId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.GuestID) == "" {
		http.Error(w, "guestId is required", http.StatusBadRequest)
		return
	}
	snap, err := s.mgr.JoinRoom(r.Context(), r.PathValue("id"), req.GuestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBoardImage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.mgr.GameState(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := boardimg.RenderPNG(snap.BoardState)
	if err != nil {
		http.Error(w, "board state is not renderable", http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.recorder.ListByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []history.MatchResult{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result       string `json:"result"`
		MovesCount   int    `json:"movesCount"`
		OpponentName string `json:"opponentName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	opponent := req.OpponentName
	if opponent == "" {
		opponent = "AI"
	}
	err := s.recorder.Record(r.Context(), history.MatchResult{
		UserID:       r.PathValue("userId"),
		Result:       history.Result(strings.ToUpper(req.Result)),
		OpponentName: opponent,
		MovesCount:   req.MovesCount,
		GameType:     history.GameTypeBaduk,
		PlayedAt:     time.Now(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	var req commentary.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.comments.Comment(r.Context(), req))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("response_encode_error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrUserNotFound), errors.Is(err, user.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, room.ErrInvalidState), errors.Is(err, room.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, room.ErrTurnViolation):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		obslog.L().Error("request_error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
