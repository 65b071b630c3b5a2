// Package gateway exposes the HTTP surface: the chat proxy endpoints the
// SPA talks to, the conversation API driving the server-side controller,
// the state persistence routes, and the WebSocket event feed.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/config"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/logging"
	"github.com/oshaberi-app/oshaberi/internal/session"
	"github.com/oshaberi-app/oshaberi/internal/settings"
	"github.com/oshaberi-app/oshaberi/internal/store"
	"github.com/oshaberi-app/oshaberi/internal/token"
)

// serverStateID keys the gateway's own session/settings snapshots in the
// state store, alongside the blobs SPA clients persist under their own ids.
const serverStateID = "server"

// Deps are the wired services the server exposes.
type Deps struct {
	Exchange   *chat.Exchange
	Controller *chat.Controller
	Sessions   *session.Store
	Settings   *settings.Settings
	Counter    *token.Counter
	Table      *llm.Table
	States     store.StateStore
	Hub        *EventHub
}

// Server is the oshaberi HTTP gateway.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	exchange *chat.Exchange
	ctrl     *chat.Controller
	sessions *session.Store
	settings *settings.Settings
	counter  *token.Counter
	table    *llm.Table
	states   store.StateStore
	hub      *EventHub

	httpServer *http.Server
}

// New creates the gateway server.
func New(cfg config.Config, deps Deps, log *logging.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log.Sub("gateway"),
		exchange: deps.Exchange,
		ctrl:     deps.Controller,
		sessions: deps.Sessions,
		settings: deps.Settings,
		counter:  deps.Counter,
		table:    deps.Table,
		states:   deps.States,
		hub:      deps.Hub,
	}
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/function", s.handleChatFunction)
	mux.HandleFunc("POST /api/chat/tokens", s.handleTokens)
	mux.HandleFunc("GET /api/models", s.handleModels)

	mux.Handle("GET /api/events", s.hub)

	// State routes sit behind basic auth when credentials are configured.
	states := http.NewServeMux()
	states.HandleFunc("GET /api/states/{bucket}", s.handleStatesAll)
	states.HandleFunc("GET /api/states/{bucket}/{id}", s.handleStatesGet)
	states.HandleFunc("POST /api/states/{bucket}/{id}", s.handleStatesPut)
	states.HandleFunc("DELETE /api/states/{bucket}/{id}", s.handleStatesDelete)
	var stateHandler http.Handler = states
	if s.cfg.Auth.User != "" {
		stateHandler = basicAuthMiddleware(states, s.cfg.Auth.User, s.cfg.Auth.Password)
	}
	mux.Handle("/api/states/", stateHandler)

	mux.HandleFunc("GET /api/conversation", s.handleConversationGet)
	mux.HandleFunc("POST /api/conversation/send", s.handleConversationSend)
	mux.HandleFunc("POST /api/conversation/resend", s.handleConversationResend)

	mux.HandleFunc("GET /api/sessions", s.handleSessionsList)
	mux.HandleFunc("POST /api/sessions", s.handleSessionsAdd)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionsGet)
	mux.HandleFunc("POST /api/sessions/{id}/select", s.handleSessionsSelect)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionsRemove)
	mux.HandleFunc("POST /api/sessions/{id}/clear", s.handleSessionsClear)
	mux.HandleFunc("POST /api/sessions/{id}/system", s.handleSessionsSystem)

	mux.HandleFunc("GET /api/settings", s.handleSettingsGet)
	mux.HandleFunc("POST /api/settings", s.handleSettingsUpdate)

	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Addr

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // turns can take a while
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.cfg.Auth.User != "").
		Msg("gateway server starting")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// RestoreState loads the gateway's own snapshots from the state store.
// Missing blobs are not an error on first run.
func (s *Server) RestoreState() {
	if blob, err := s.states.Get(store.BucketSessions, serverStateID); err == nil {
		if err := s.sessions.Restore(blob); err != nil {
			s.log.Warn().Err(err).Msg("restoring session state")
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Err(err).Msg("reading session state")
	}

	if blob, err := s.states.Get(store.BucketSettings, serverStateID); err == nil {
		if err := s.settings.RestoreState(blob); err != nil {
			s.log.Warn().Err(err).Msg("restoring settings state")
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Err(err).Msg("reading settings state")
	}
}
