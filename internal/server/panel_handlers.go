package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sendrec/askvideo/internal/httputil"
	"github.com/sendrec/askvideo/internal/panel"
	"github.com/sendrec/askvideo/internal/pipeline"
	"github.com/sendrec/askvideo/internal/prefs"
	"github.com/sendrec/askvideo/internal/voice"
)

type askRequest struct {
	Question string `json:"question"`
}

// currentPanel writes a 404 and returns nil when no panel is open.
func (s *Server) currentPanel(w http.ResponseWriter) *panel.Panel {
	p, err := s.panels.Current()
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "panel is not open")
		return nil
	}
	return p
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	p := s.currentPanel(w)
	if p == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleOpenPanel(w http.ResponseWriter, r *http.Request) {
	p, created, err := s.panels.Open(r.Context())
	if err != nil {
		slog.Error("panel: open failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not open panel")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, p.View())
}

func (s *Server) handleClosePanel(w http.ResponseWriter, r *http.Request) {
	s.panels.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	p := s.currentPanel(w)
	if p == nil {
		return
	}

	var req askRequest
	if err := httputil.ReadJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := p.Ask(r.Context(), req.Question); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			httputil.WriteError(w, http.StatusConflict, "a question is already being answered")
		case errors.Is(err, pipeline.ErrInputDisabled), errors.Is(err, pipeline.ErrNotReady):
			httputil.WriteError(w, http.StatusConflict, "the panel is not accepting questions")
		default:
			slog.Error("panel: ask failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "could not ask question")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleToggleVoice(w http.ResponseWriter, r *http.Request) {
	p := s.currentPanel(w)
	if p == nil {
		return
	}
	if err := p.ToggleVoice(r.Context()); err != nil {
		if errors.Is(err, voice.ErrInputDisabled) {
			httputil.WriteError(w, http.StatusConflict, "the panel is not accepting questions")
			return
		}
		slog.Warn("panel: voice toggle failed", "error", err)
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	p := s.currentPanel(w)
	if p == nil {
		return
	}
	if err := p.ClearCache(r.Context()); err != nil {
		slog.Error("panel: clear cache failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "could not reach the background context")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, p.View())
}

func (s *Server) handleActivateMarker(w http.ResponseWriter, r *http.Request) {
	p := s.currentPanel(w)
	if p == nil {
		return
	}

	message, err := strconv.Atoi(chi.URLParam(r, "message"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid message index")
		return
	}
	marker, err := strconv.Atoi(chi.URLParam(r, "marker"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid marker index")
		return
	}

	if err := p.ActivateMarker(r.Context(), message, marker); err != nil {
		if errors.Is(err, pipeline.ErrMarkerNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "timestamp not found")
			return
		}
		// The failure is already a notice in the conversation.
		slog.Warn("panel: activate marker failed", "error", err)
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.panels.Preferences(r.Context()))
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var next prefs.Preferences
	if err := httputil.ReadJSON(w, r, &next, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.panels.UpdatePreferences(r.Context(), next); err != nil {
		if errors.Is(err, panel.ErrInvalidPreference) {
			httputil.WriteError(w, http.StatusBadRequest, errorDetail(err))
			return
		}
		slog.Error("panel: update preferences failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not save preferences")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, next)
}

// errorDetail strips the sentinel prefix from a wrapped validation error.
func errorDetail(err error) string {
	return strings.TrimPrefix(err.Error(), panel.ErrInvalidPreference.Error()+": ")
}
