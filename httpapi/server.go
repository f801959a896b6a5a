// Package httpapi exposes the relay over HTTP: tab management, full
// extraction, boundary-validated command dispatch, a settings surface,
// and a per-tab Server-Sent Events stream acting as the presentation
// channel.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagesync/fetch"
	"github.com/hazyhaar/pagesync/idgen"
	"github.com/hazyhaar/pagesync/panel"
	"github.com/hazyhaar/pagesync/relay"
	"github.com/hazyhaar/pagesync/settings"
	"github.com/hazyhaar/pagesync/tab"
	"github.com/hazyhaar/pagesync/translate"
	"github.com/hazyhaar/pagesync/wire"
)

// Config wires the server's collaborators.
type Config struct {
	Manager  *tab.Manager
	Relay    *relay.Relay
	Settings *settings.Store
	// Loader opens tabs from URLs. Optional; without it POST /api/tabs
	// accepts only inline HTML.
	Loader *fetch.Loader
	// Translator backs the panel's translate operation. Optional;
	// without it POST .../panel/translate answers 501.
	Translator translate.Translator
	Logger     *slog.Logger
}

// Server is the HTTP surface over the relay and tab manager.
type Server struct {
	manager    *tab.Manager
	relay      *relay.Relay
	store      *settings.Store
	loader     *fetch.Loader
	translator translate.Translator
	logger     *slog.Logger

	mu       sync.Mutex
	panels   map[int]*panel.Panel
	sessions map[int]string
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		manager:    cfg.Manager,
		relay:      cfg.Relay,
		store:      cfg.Settings,
		loader:     cfg.Loader,
		translator: cfg.Translator,
		logger:     cfg.Logger,
		panels:     make(map[int]*panel.Panel),
		sessions:   make(map[int]string),
	}
}

// Close shuts down any panel sessions still open.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.panels {
		p.Close()
		delete(s.panels, id)
		delete(s.sessions, id)
	}
}

var newRequestID = idgen.Prefixed("req_", idgen.NanoID(12))

// requestLogger stamps every request with an opaque ID and logs it on
// completion. The ID is echoed in the X-Request-Id response header so
// client reports can be matched to server logs.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("httpapi: request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/tabs", s.listTabs)
		r.Post("/tabs", s.openTab)
		r.Post("/tabs/{tabID}/activate", s.activateTab)
		r.Delete("/tabs/{tabID}", s.closeTab)
		r.Get("/tabs/{tabID}/events", s.streamEvents)

		r.Post("/tabs/{tabID}/panel", s.openPanel)
		r.Delete("/tabs/{tabID}/panel", s.closePanel)
		r.Get("/tabs/{tabID}/panel/blocks", s.panelBlocks)
		r.Post("/tabs/{tabID}/panel/extract", s.panelExtract)
		r.Post("/tabs/{tabID}/panel/translate", s.panelTranslate)
		r.Put("/tabs/{tabID}/panel/mode", s.panelMode)

		r.Post("/extract", s.extract)
		r.Post("/command", s.command)

		if s.store != nil {
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.putSettings)
		}
	})

	return r
}

type tabInfo struct {
	ID     int  `json:"id"`
	Active bool `json:"active"`
}

func (s *Server) listTabs(w http.ResponseWriter, _ *http.Request) {
	active := s.relay.ActiveTab()
	var out []tabInfo
	for _, id := range s.manager.Tabs() {
		out = append(out, tabInfo{ID: id, Active: id == active})
	}
	writeJSON(w, http.StatusOK, out)
}

type openTabRequest struct {
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`
}

func (s *Server) openTab(w http.ResponseWriter, r *http.Request) {
	var req openTabRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var ctrl *tab.Controller
	switch {
	case req.URL != "":
		if s.loader == nil {
			writeError(w, http.StatusBadRequest, "url loading is not configured")
			return
		}
		doc, err := s.loader.Load(r.Context(), req.URL)
		if err != nil {
			s.logger.Warn("httpapi: load failed", "url", req.URL, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		ctrl = s.manager.Open(doc)
	case req.HTML != "":
		var err error
		ctrl, err = s.manager.OpenHTML(req.HTML)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "either url or html is required")
		return
	}

	writeJSON(w, http.StatusCreated, tabInfo{
		ID:     ctrl.TabID(),
		Active: ctrl.TabID() == s.relay.ActiveTab(),
	})
}

func (s *Server) activateTab(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	if err := s.manager.Activate(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) closeTab(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	if p, ok := s.panels[id]; ok {
		p.Close()
		delete(s.panels, id)
	}
	s.mu.Unlock()
	s.manager.CloseTab(id)
	w.WriteHeader(http.StatusNoContent)
}

// extract asks the active tab for a full extraction. An unreachable
// document context still yields 200 with the failure sentinel in the
// body, mirroring the wire contract.
func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	reply := s.relay.Extract(r.Context())
	writeJSON(w, http.StatusOK, reply)
}

// command feeds the raw payload through the relay's validating boundary.
// Rejected messages become 400, never a crash or silent state change.
func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	reply, err := s.relay.Dispatch(r.Context(), s.relay.ActiveTab(), raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if reply.Kind != "" {
		writeJSON(w, http.StatusOK, reply)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamEvents binds an SSE stream as the tab's presentation channel.
// The stream carries every event the relay routes to this tab; when the
// client goes away the binding is removed so later pushes drop cleanly.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	flusher, okf := w.(http.Flusher)
	if !okf {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	pipe := relay.NewPipe(0)
	s.relay.OpenChannel(id, pipe)
	defer func() {
		s.relay.CloseChannel(id)
		pipe.Close()
	}()

	// Announce the binding on the stream itself.
	ready := wire.ChannelReady(id)
	if err := writeEvent(w, flusher, ready); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, okc := <-pipe.Receive():
			if !okc {
				return
			}
			if err := writeEvent(w, flusher, msg); err != nil {
				s.logger.Debug("httpapi: sse write failed", "tab", id, "error", err)
				return
			}
		}
	}
}

func writeEvent(w io.Writer, flusher http.Flusher, msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var p settings.Partial
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.store.Set(r.Context(), p)
	cfg, err := s.store.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func tabParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
