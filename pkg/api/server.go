package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/otc"
)

const defaultListLimit = 50

// Server handles the REST API and WebSocket connections.
type Server struct {
	contract *otc.Contract
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

// NewServer wires the API to the trade engine and hooks position lifecycle
// events into the WebSocket hub.
func NewServer(contract *otc.Contract, log *zap.SugaredLogger) *Server {
	s := &Server{
		contract: contract,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
	}

	contract.OnPositionCreated = func(p *otc.Position) {
		s.hub.BroadcastToChannel("positions", PositionEvent{Type: "position_created", Position: newPositionInfo(p)})
	}
	contract.OnPositionExecuted = func(p *otc.Position) {
		s.hub.BroadcastToChannel("positions", PositionEvent{Type: "position_executed", Position: newPositionInfo(p)})
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/positions", s.handleCreatePosition).Methods("POST")
	api.HandleFunc("/positions", s.handleListPositions).Methods("GET")
	api.HandleFunc("/positions/{id}", s.handleGetPosition).Methods("GET")
	api.HandleFunc("/positions/{id}/execute", s.handleExecutePosition).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req CreatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	sender, err := parseAddress(req.Sender)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	msg := otc.CreateOtcMsg{Offer: req.Offer, Ask: req.Ask}
	if req.Executor != "" {
		executor, err := parseAddress(req.Executor)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		msg.Executor = &executor
	}

	id, err := s.contract.CreateOtc(sender, msg, asset.NewCoins(req.Funds...))
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}

	s.writeJSON(w, http.StatusCreated, CreatePositionResponse{ID: id})
}

func (s *Server) handleExecutePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req ExecutePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	sender, err := parseAddress(req.Sender)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	pos, err := s.contract.ExecuteOtc(sender, otc.ExecuteOtcMsg{ID: id}, asset.NewCoins(req.Funds...))
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, newPositionInfo(pos))
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	pos, err := s.contract.Position(id)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, newPositionInfo(pos))
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	positions, err := s.contract.RecentPositions(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]PositionInfo, len(positions))
	for i, p := range positions {
		out[i] = newPositionInfo(p)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("bad address: " + s)
	}
	return common.HexToAddress(s), nil
}

// statusOf maps engine errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, otc.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, otc.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, otc.ErrPositionNotActive):
		return http.StatusConflict
	case errors.Is(err, otc.ErrInvalidBundle), errors.Is(err, otc.ErrFundsMismatch):
		return http.StatusBadRequest
	case errors.Is(err, otc.ErrAssetTransferFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnw("response_encode_failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
