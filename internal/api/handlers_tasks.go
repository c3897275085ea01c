package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castellan-media/castellan/internal/httputil"
	"github.com/castellan-media/castellan/internal/taskman"
)

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.tasks.Status())
}

func (s *Server) handleCancelPending(w http.ResponseWriter, r *http.Request) {
	typ, err := taskman.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	canceled := s.tasks.CancelPending(typ)
	s.hub.Broadcast("tasks:canceled", map[string]interface{}{
		"type":     typ.String(),
		"canceled": canceled,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"canceled": canceled})
}
