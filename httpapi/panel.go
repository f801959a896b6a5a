package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hazyhaar/pagesync/idgen"
	"github.com/hazyhaar/pagesync/panel"
	"github.com/hazyhaar/pagesync/translate"
)

// A panel session is a server-held presentation context for one tab. It
// shares the tab's single channel slot with the SSE stream: opening one
// replaces the other, last writer wins.

func (s *Server) panelFor(tabID int) (*panel.Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[tabID]
	return p, ok
}

func (s *Server) openPanel(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	if _, ok := s.manager.Get(id); !ok {
		writeError(w, http.StatusNotFound, "no such tab")
		return
	}

	s.mu.Lock()
	if prev, ok := s.panels[id]; ok {
		prev.Close()
	}
	// The session outlives this request; it ends on DELETE or server
	// shutdown.
	p := panel.Open(context.Background(), panel.Config{
		TabID:      id,
		Relay:      s.relay,
		Translator: s.translator,
		Settings:   s.store,
		Logger:     s.logger,
	})
	s.panels[id] = p
	session := idgen.New()
	s.sessions[id] = session
	s.mu.Unlock()

	s.logger.Info("httpapi: panel opened", "tab", id, "session", session)
	writeJSON(w, http.StatusCreated, map[string]any{"tab": id, "session": session})
}

func (s *Server) closePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	p, found := s.panels[id]
	session := s.sessions[id]
	delete(s.panels, id)
	delete(s.sessions, id)
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "no panel open for tab")
		return
	}
	p.Close()
	s.logger.Info("httpapi: panel closed", "tab", id, "session", session)
	w.WriteHeader(http.StatusNoContent)
}

type panelView struct {
	Blocks  []panel.BlockView `json:"blocks"`
	Hovered string            `json:"hovered,omitempty"`
}

func (s *Server) panelBlocks(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	p, found := s.panelFor(id)
	if !found {
		writeError(w, http.StatusNotFound, "no panel open for tab")
		return
	}
	writeJSON(w, http.StatusOK, panelView{Blocks: p.Blocks(), Hovered: p.Hovered()})
}

// panelExtract refreshes the session from a full extraction. An
// unreachable document context answers 200 with the failure in the body,
// matching the wire contract for page_text.
func (s *Server) panelExtract(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	p, found := s.panelFor(id)
	if !found {
		writeError(w, http.StatusNotFound, "no panel open for tab")
		return
	}
	if err := p.Extract(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, panelView{Blocks: p.Blocks(), Hovered: p.Hovered()})
}

func (s *Server) panelTranslate(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	if s.translator == nil {
		writeError(w, http.StatusNotImplemented, "no translation backend configured")
		return
	}
	p, found := s.panelFor(id)
	if !found {
		writeError(w, http.StatusNotFound, "no panel open for tab")
		return
	}
	if err := p.Translate(r.Context(), nil); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, translate.ErrUnsupportedPair) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{
			"error":  err.Error(),
			"advice": panel.Advice(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, panelView{Blocks: p.Blocks(), Hovered: p.Hovered()})
}

type panelModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) panelMode(w http.ResponseWriter, r *http.Request) {
	id, ok := tabParam(w, r)
	if !ok {
		return
	}
	p, found := s.panelFor(id)
	if !found {
		writeError(w, http.StatusNotFound, "no panel open for tab")
		return
	}
	var req panelModeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.SetMode(r.Context(), req.Enabled); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
