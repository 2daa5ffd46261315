// Package api is the HTTP front end to the command layer, plus the live audit stream and
// the metrics endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"andycoin/andycoin"
	"andycoin/messaging/audit"
	"andycoin/messaging/commands"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	commands *commands.Dispatcher
	router   *mux.Router
	srv      *http.Server
}

// New builds the router. hub and gatherer may be nil, which drops /audit and /metrics.
func New(d *commands.Dispatcher, hub *audit.Hub, gatherer prometheus.Gatherer) *Server {
	s := &Server{commands: d, router: mux.NewRouter()}
	if hub != nil {
		s.router.Path("/audit").Headers("Upgrade", "websocket").Handler(hub)
	}
	if gatherer != nil {
		s.router.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.router.Path("/leaderboard").Methods(http.MethodGet).HandlerFunc(s.leaderboard)

	c := s.router.PathPrefix("/communities/{community:[0-9]+}").Subrouter()
	c.Path("/balances/{member:[0-9]+}").Methods(http.MethodGet).HandlerFunc(s.balance)
	c.Path("/give").Methods(http.MethodPost).HandlerFunc(s.give)
	c.Path("/pay").Methods(http.MethodPost).HandlerFunc(s.pay)
	c.Path("/flip").Methods(http.MethodPost).HandlerFunc(s.flip)
	c.Path("/vote").Methods(http.MethodGet).HandlerFunc(s.voteStatus)
	c.Path("/vote").Methods(http.MethodPost).HandlerFunc(s.vote)
	c.Path("/vote/end").Methods(http.MethodPost).HandlerFunc(s.endVote)
	c.Path("/config/role").Methods(http.MethodPost).HandlerFunc(s.setRole)
	c.Path("/config/vote").Methods(http.MethodPost).HandlerFunc(s.voteConfig)
	return s
}

// EnableProfiling serves the runtime profiles under /debug/pprof/ for cmd/debugger.
func (s *Server) EnableProfiling() {
	s.router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
}

func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       5 * time.Second,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	andycoin.LogCLI(fmt.Sprintf("API listening on %s", addr), 4)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
