package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/castellan-media/castellan/internal/httputil"
	"github.com/castellan-media/castellan/internal/library"
)

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.runAPI(r.Context(), "list libraries", func() (any, error) {
		return s.repo.ListLibraries()
	})
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list libraries")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, libs)
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var lib library.Library
	if err := httputil.ReadJSON(r, &lib); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if lib.Name == "" || lib.Path == "" || !lib.LibraryType.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "name, path and valid library_type required")
		return
	}

	if err := s.repo.CreateLibrary(&lib); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create library")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lib)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid library id")
		return
	}

	lib, err := s.repo.GetLibrary(id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "library not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid library id")
		return
	}

	if err := s.repo.DeleteLibrary(id); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete library")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid library id")
		return
	}

	lib, err := s.repo.GetLibrary(id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "library not found")
		return
	}

	// Fire and forget: the scan runs whenever media_scan has capacity.
	// Callers poll /api/tasks or the websocket for progress.
	h := s.scanner.ScanLibrary(lib)
	if s.notifier != nil {
		s.notifier.WatchTask(h, "scan library "+lib.Name)
	}
	s.hub.Broadcast("scan:submitted", map[string]string{"library": lib.Name})
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleGenerateCollage(w http.ResponseWriter, r *http.Request) {
	h := s.scanner.GenerateCollage(s.config.CollagePath)
	if s.notifier != nil {
		s.notifier.WatchTask(h, "poster collage")
	}
	s.hub.Broadcast("collage:submitted", map[string]string{"dest": s.config.CollagePath})
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid library id")
		return
	}

	items, err := s.runAPI(r.Context(), "list media", func() (any, error) {
		return s.repo.ListMediaForLibrary(id)
	})
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list media")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}
