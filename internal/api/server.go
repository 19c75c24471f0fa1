// Package api serves transaction history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metadata"
)

const (
	historyPath         = "/api/v2/txs/history"
	maxRequestBodyBytes = 1 << 20 // 1 MB

	defaultAddressRequestLimit = 50
	defaultResponseLimit       = 50
)

// Reference errors returned when a client's view of the chain disagrees
// with the metadata service.
const (
	ErrBestBlockMismatch = "REFERENCE_BEST_BLOCK_MISMATCH"
	ErrTxNotFound        = "REFERENCE_TX_NOT_FOUND"
	ErrBlockMismatch     = "REFERENCE_BLOCK_MISMATCH"
)

// HistoryAsker is satisfied by *history.Service.
type HistoryAsker interface {
	AskTransactionHistory(
		ctx context.Context,
		limit int,
		addresses []string,
		after model.Outcome[model.BlockNumByTxHash],
		until model.Outcome[int64],
	) (model.Outcome[[]model.Transaction], error)
}

type Server struct {
	history             HistoryAsker
	lookups             metadata.Lookups
	addressRequestLimit int
	responseLimit       int
	logger              *slog.Logger
}

// ServerOption configures optional settings for the API server.
type ServerOption func(*Server)

// WithAddressRequestLimit caps how many addresses one request may name.
func WithAddressRequestLimit(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.addressRequestLimit = n
		}
	}
}

// WithResponseLimit caps how many transactions one response may carry.
func WithResponseLimit(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.responseLimit = n
		}
	}
}

func NewServer(history HistoryAsker, lookups metadata.Lookups, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		history:             history,
		lookups:             lookups,
		addressRequestLimit: defaultAddressRequestLimit,
		responseLimit:       defaultResponseLimit,
		logger:              logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+historyPath, s.handleHistory)
	return mux
}

type errorBody struct {
	Error struct {
		Response string `json:"response"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var body errorBody
	body.Error.Response = msg
	writeJSON(w, status, body)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type afterRef struct {
	Tx    string `json:"tx"`
	Block string `json:"block"`
}

type historyRequest struct {
	Addresses  []string  `json:"addresses"`
	UntilBlock string    `json:"untilBlock"`
	After      *afterRef `json:"after,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req historyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.Addresses) == 0 || len(req.Addresses) > s.addressRequestLimit {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("addresses request length should be (0, %d]", s.addressRequestLimit))
		return
	}
	if req.UntilBlock == "" {
		writeError(w, http.StatusBadRequest, "untilBlock is required")
		return
	}
	if req.After != nil && (req.After.Tx == "" || req.After.Block == "") {
		writeError(w, http.StatusBadRequest, "after requires both tx and block")
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > s.responseLimit {
		limit = s.responseLimit
	}

	until := s.lookups.AskBlockNumByHash(ctx, req.UntilBlock)
	if !until.IsOK() {
		s.lookupFailed(w, r, "untilBlock", until.ErrMsg, ErrBestBlockMismatch)
		return
	}

	after := model.Fail[model.BlockNumByTxHash](metadata.ErrMsgNoValue)
	if req.After != nil {
		after = s.lookups.AskBlockNumByTxHash(ctx, req.After.Tx)
		if !after.IsOK() {
			s.lookupFailed(w, r, "after.tx", after.ErrMsg, ErrTxNotFound)
			return
		}
		if after.Value.Block.Hash != req.After.Block {
			writeError(w, http.StatusBadRequest, ErrBlockMismatch)
			return
		}
	}

	result, err := s.history.AskTransactionHistory(ctx, limit, req.Addresses, after, until)
	if err != nil {
		s.logger.ErrorContext(ctx, "transaction history failed",
			"request_id", RequestIDFromContext(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	txs, ok := result.Get()
	if !ok {
		writeError(w, http.StatusInternalServerError, result.ErrMsg)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// lookupFailed maps a "no value" lookup to the client-facing reference error;
// any other failure means the metadata service is unusable.
func (s *Server) lookupFailed(w http.ResponseWriter, r *http.Request, field, errMsg, referenceErr string) {
	if errMsg == metadata.ErrMsgNoValue {
		writeError(w, http.StatusBadRequest, referenceErr)
		return
	}
	s.logger.WarnContext(r.Context(), "metadata lookup failed",
		"request_id", RequestIDFromContext(r.Context()),
		"field", field,
		"error", errMsg,
	)
	writeError(w, http.StatusBadGateway, errMsg)
}
