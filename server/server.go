package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mezonai/mmn-faucet/errors"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/jsonx"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/monitoring"
	"github.com/mezonai/mmn-faucet/types"
)

// DripRequestBody is the POST /drip payload.
type DripRequestBody struct {
	Address   string `json:"address"`
	Recaptcha string `json:"recaptcha"`
}

// DripResponse is returned once the chain accepted the drip transaction.
type DripResponse struct {
	Hash string `json:"hash"`
}

// ErrorResponse carries the stable reason code alongside the message.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// StatusResponse mirrors the dispatcher's view of a request.
type StatusResponse struct {
	RequestID string                  `json:"request_id"`
	State     types.DripState         `json:"state"`
	Record    *types.SubmissionRecord `json:"record,omitempty"`
}

// Server is the HTTP front-end of the faucet.
type Server struct {
	dispatcher *faucet.Dispatcher
	httpServer *http.Server
}

// NewServer builds the HTTP front-end listening on addr.
func NewServer(addr string, dispatcher *faucet.Dispatcher) *Server {
	s := &Server{dispatcher: dispatcher}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /drip", s.handleDrip)
	mux.HandleFunc("GET /drip/{id}", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	monitoring.RegisterMetrics(mux)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logx.Info("SERVER", "http front-end listening on ", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDrip(w http.ResponseWriter, r *http.Request) {
	var body DripRequestBody
	if err := jsonx.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.NewFaucetError(errors.ErrCodeInvalidRequest, "malformed request body"))
		return
	}

	req, err := s.dispatcher.Request(r.Context(), body.Address, types.SourceHttp, body.Recaptcha)
	if err != nil {
		writeError(w, err)
		return
	}

	awaitCtx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	res, err := s.dispatcher.Await(awaitCtx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DripResponse{Hash: res.TxHash})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.dispatcher.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		RequestID: status.RequestID,
		State:     status.State,
		Record:    status.Record,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a faucet reason code onto an HTTP status.
func statusFor(code errors.FaucetErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidAddress, errors.ErrCodeRecaptchaFailed:
		return http.StatusBadRequest
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeBackpressure, errors.ErrCodeChainUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeRequestNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	message := err.Error()
	if fe, ok := err.(*errors.FaucetError); ok {
		message = fe.Message
	}
	writeJSON(w, statusFor(code), ErrorResponse{Code: string(code), Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Error("SERVER", "failed to encode response: ", err)
	}
}
