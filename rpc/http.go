package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plebbit/plebbit-tipping-v1/core"
	"github.com/plebbit/plebbit-tipping-v1/observability"
	"github.com/plebbit/plebbit-tipping-v1/observability/logging"
	telemetry "github.com/plebbit/plebbit-tipping-v1/observability/otel"
	"github.com/plebbit/plebbit-tipping-v1/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig wires the optional collaborators of the RPC server.
type ServerConfig struct {
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Activity  modules.ActivitySource
	Logger    *slog.Logger
}

type methodFunc func(r *http.Request, caller common.Address, params json.RawMessage) (interface{}, *modules.ModuleError)

type method struct {
	auth bool
	call methodFunc
}

// Server exposes the ledger over JSON-RPC 2.0 and the tip stream over
// websockets.
type Server struct {
	node    *core.Node
	auth    *authenticator
	limiter *callerLimiter
	logger  *slog.Logger

	tipping  *modules.TippingModule
	bank     *modules.BankModule
	activity *modules.ActivityModule

	methods map[string]method
}

// NewServer constructs a server over node.
func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:     node,
		auth:     newAuthenticator(cfg.Auth),
		limiter:  newCallerLimiter(cfg.RateLimit),
		logger:   logger,
		tipping:  modules.NewTippingModule(node),
		bank:     modules.NewBankModule(node),
		activity: modules.NewActivityModule(cfg.Activity),
	}
	s.methods = s.registerMethods()
	return s
}

func respond[T any](result *T, modErr *modules.ModuleError) (interface{}, *modules.ModuleError) {
	if modErr != nil {
		return nil, modErr
	}
	return result, nil
}

func (s *Server) registerMethods() map[string]method {
	read := func(fn func(json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{call: func(_ *http.Request, _ common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return fn(raw)
		}}
	}
	write := func(fn func(common.Address, json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{auth: true, call: func(_ *http.Request, caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return fn(caller, raw)
		}}
	}
	return map[string]method{
		"tip_record": write(func(caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.Record(caller, raw))
		}),
		"tip_getRecipientTotal": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.RecipientTotal(raw))
		}),
		"tip_getRecipientTotals": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.RecipientTotals(raw))
		}),
		"tip_getRecipientTotalsUniform": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.RecipientTotalsUniform(raw))
		}),
		"tip_getSenderTotal": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.SenderTotal(raw))
		}),
		"tip_getSenderTotals": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.SenderTotals(raw))
		}),
		"tip_getSenderTotalsUniform": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.SenderTotalsUniform(raw))
		}),
		"tip_getTips": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.Tips(raw))
		}),
		"tip_getTipsAmounts": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.TipsAmounts(raw))
		}),
		"tip_getTipsCount": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.TipsCount(raw))
		}),
		"tip_params": read(func(json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.Params())
		}),
		"tip_hasRole": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.HasRole(raw))
		}),
		"tip_getRoleMembers": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.RoleMembers(raw))
		}),
		"tip_setMinimumTipAmount": write(func(caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.SetMinimumTipAmount(caller, raw))
		}),
		"tip_setFeePercent": write(func(caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.SetFeePercent(caller, raw))
		}),
		"tip_grantModerator": write(func(caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.GrantModerator(caller, raw))
		}),
		"tip_revokeModerator": write(func(caller common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.RevokeModerator(caller, raw))
		}),
		"tip_deriveKeys": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.tipping.DeriveKeys(raw))
		}),
		"tip_activity": {call: func(r *http.Request, _ common.Address, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.activity.Recent(r.Context(), raw))
		}},
		"bank_getBalance": read(func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return respond(s.bank.Balance(raw))
		}),
	}
}

// Handler returns the HTTP routes of the server wrapped for tracing.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	r.Get("/ws/tips", s.handleTipStream)
	return otelhttp.NewHandler(r, "tipd.http")
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
		return
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single parameter object", nil)
		return
	}
	var params json.RawMessage
	if len(req.Params) == 1 {
		params = req.Params[0]
	}

	module := moduleName(req.Method)
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(r.Context(), "rpc."+req.Method)
	defer span.End()
	span.SetAttributes(attribute.String("rpc.method", req.Method))
	r = r.WithContext(ctx)

	var caller common.Address
	if m.auth {
		caller, err = s.auth.authenticate(r)
		if err != nil {
			span.SetStatus(codes.Error, "unauthorized")
			observability.ModuleMetrics().Observe(module, req.Method, codeUnauthorized, time.Since(start))
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
			return
		}
		if !s.limiter.allow(caller.Hex()) {
			observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
			observability.ModuleMetrics().Observe(module, req.Method, codeRateLimited, time.Since(start))
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		span.SetAttributes(attribute.String("rpc.caller", caller.Hex()))
	}

	result, modErr := m.call(r, caller, params)
	if modErr != nil {
		span.SetStatus(codes.Error, modErr.Message)
		observability.ModuleMetrics().Observe(module, req.Method, modErr.Code, time.Since(start))
		attrs := []any{
			slog.String("method", req.Method),
			slog.Int("code", modErr.Code),
			slog.String("error", modErr.Message),
			slog.String("source", clientSource(r)),
		}
		if m.auth {
			attrs = append(attrs, logging.MaskField("caller", caller.Hex()))
		}
		s.logger.Info("rpc call failed", attrs...)
		writeError(w, modErr.HTTPStatus, req.ID, modErr.Code, modErr.Message, modErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func moduleName(method string) string {
	if prefix, _, ok := strings.Cut(method, "_"); ok {
		return prefix
	}
	return method
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
