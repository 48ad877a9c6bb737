// Package rpc exposes channels over a JSON HTTP API. Every state-changing
// request runs as one host operation, so it either commits completely or
// leaves no trace.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"contentchain/core/host"
	"contentchain/native/registry"
	"contentchain/storage/eventlog"
)

const maxRequestBytes = 1 << 20

// balanceReader is the read side of the token ledger.
type balanceReader interface {
	BalanceOf(token, account common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Host      *host.Host
	Registry  *registry.Registry
	Bank      balanceReader
	Events    *eventlog.Log
	Auth      AuthConfig
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server serves the channel API.
type Server struct {
	host     *host.Host
	registry *registry.Registry
	bank     balanceReader
	events   *eventlog.Log
	auth     *authenticator
	limiter  *rateLimiter
	logger   *slog.Logger

	router http.Handler
}

// New wires the router.
func New(cfg Config) (*Server, error) {
	if cfg.Host == nil || cfg.Registry == nil || cfg.Bank == nil {
		return nil, errors.New("rpc: host, registry and bank are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		host:     cfg.Host,
		registry: cfg.Registry,
		bank:     cfg.Bank,
		events:   cfg.Events,
		auth:     newAuthenticator(cfg.Auth),
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
	}
	s.router = otelhttp.NewHandler(s.buildRouter(), "channeld")
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observe(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.middleware)

		api.Get("/tokens/{token}", s.handleTokenSupply)
		api.Get("/tokens/{token}/balances/{account}", s.handleTokenBalance)
		api.Get("/events", s.handleEvents)
		api.Get("/events/stream", s.handleEventStream)
		api.With(s.auth.require).Post("/launch", s.handleLaunch)

		api.Route("/channels", func(ch chi.Router) {
			ch.Get("/", s.handleListChannels)
			ch.Route("/{content}", func(c chi.Router) {
				c.Get("/", s.handleGetChannel)
				c.Get("/items/{id}", s.handleGetItem)
				c.Get("/items/{id}/price", s.handleGetPrice)
				c.Get("/claimable/{account}", s.handleClaimable)
				c.Get("/rewards/{account}", s.handleRewards)
				c.Get("/minter", s.handleMinter)
				c.Get("/auction", s.handleAuction)
				c.Post("/minter/update", s.handleMinterUpdate)
				c.Post("/rewards/{account}/claim", s.handleRewardsClaim)

				c.Group(func(w chi.Router) {
					w.Use(s.auth.require)
					w.Post("/items", s.handleCreate)
					w.Post("/items/{id}/collect", s.handleCollect)
					w.Post("/items/approve", s.handleApprove)
					w.Post("/claim", s.handleClaim)
					w.Post("/moderators", s.handleSetModerators)
					w.Post("/moderation", s.handleSetModeration)
					w.Post("/admin", s.handleAdmin)
					w.Post("/auction/buy", s.handleAuctionBuy)
					w.Post("/pool/provision", s.handleProvision)
				})
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{"status": "ok", "channels": len(s.registry.Channels())}
	if s.events != nil {
		seq, head := s.events.Head()
		status["eventSeq"] = seq
		status["eventHead"] = head
		if lost := s.events.Lost(); lost > 0 {
			status["status"] = "degraded"
			status["eventsLost"] = lost
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// fail writes err with its mapped status and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", RequestIDFromContext(r.Context()), "route", r.URL.Path, "error", err)
	}
	writeError(w, status, err)
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalid(fmt.Errorf("invalid payload: %w", err))
	}
	return nil
}

func pathAddress(r *http.Request, param string) (common.Address, error) {
	return parseAddress(param, chi.URLParam(r, param))
}

func pathUint(r *http.Request, param string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, param)), 10, 64)
	if err != nil {
		return 0, invalid(fmt.Errorf("%s must be an unsigned integer", param))
	}
	return v, nil
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, invalid(fmt.Errorf("%s must be an unsigned integer", name))
	}
	return v, nil
}

func (s *Server) channel(r *http.Request) (*registry.Channel, error) {
	addr, err := pathAddress(r, "content")
	if err != nil {
		return nil, err
	}
	return s.registry.ChannelByContent(addr)
}

func caller(r *http.Request) common.Address {
	addr, _ := CallerFromContext(r.Context())
	return addr
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var supply *big.Int
	err = s.host.View(func() error {
		var err error
		supply, err = s.bank.TotalSupply(token)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token.Hex(), "totalSupply": formatAmount(supply)})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var balance *big.Int
	err = s.host.View(func() error {
		var err error
		balance, err = s.bank.BalanceOf(token, account)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token.Hex(), "account": account.Hex(), "balance": formatAmount(balance)})
}
