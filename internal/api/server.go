// Package api implements the in-process administrative service contract
// consumed by the (out-of-scope) web/dashboard layer: status, peer/route/
// session inspection, route finding, session lifecycle, stake management,
// and reward operations, each exposed as one JSON-RPC 2.0 method over the
// same Request/Response/Error envelope, method-name dispatch switch, and
// Start/Addr/Stop HTTP lifecycle used throughout this codebase.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Klingon-tech/networkneuron/internal/coordinator"
	"github.com/Klingon-tech/networkneuron/internal/log"
	"github.com/rs/zerolog"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Server is the administrative JSON-RPC 2.0 HTTP server.
type Server struct {
	addr   string
	coord  *coordinator.Coordinator
	server *http.Server
	logger zerolog.Logger
	ln     net.Listener
}

// New creates an administrative server bound to addr, serving coord's
// subsystems.
func New(addr string, coord *coordinator.Coordinator) *Server {
	s := &Server{
		addr:   addr,
		coord:  coord,
		logger: log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start begins listening and serving in a background goroutine. It
// returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, `jsonrpc must be "2.0"`)
		return
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		writeJSON(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) dispatch(req *Request) (interface{}, *Error) {
	switch req.Method {
	case "status":
		return s.handleStatus(req)
	case "peers":
		return s.handlePeers(req)
	case "sessions":
		return s.handleSessions(req)
	case "routes":
		return s.handleRoutes(req)
	case "find_route":
		return s.handleFindRoute(req)
	case "create_session":
		return s.handleCreateSession(req)
	case "close_session":
		return s.handleCloseSession(req)
	case "node_stats":
		return s.handleNodeStats(req)
	case "network_stats":
		return s.handleNetworkStats(req)
	case "stake":
		return s.handleStake(req)
	case "unstake":
		return s.handleUnstake(req)
	case "calculate_reward":
		return s.handleCalculateReward(req)
	case "distribute_rewards":
		return s.handleDistributeRewards(req)
	case "transaction_history":
		return s.handleTransactionHistory(req)
	case "leaderboard":
		return s.handleLeaderboard(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id})
}

func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
