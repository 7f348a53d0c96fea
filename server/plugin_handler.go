package server

import (
	"encoding/json"
	"io"
	"net/http"

	"audiowave/core/plugin"

	"github.com/gorilla/mux"
)

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.host.Plugins())
}

func (s *Server) handleEnablePlugin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.host.Enable(id) {
		respondError(w, http.StatusNotFound, "plugin not found")
		return
	}
	respondOK(w)
}

func (s *Server) handleDisablePlugin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.host.Disable(id) {
		respondError(w, http.StatusNotFound, "plugin not found")
		return
	}
	respondOK(w)
}

func (s *Server) handleConfigurePlugin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "configuration must be valid JSON")
		return
	}
	if err := s.host.Configure(id, body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w)
}

// handleCurrentLyric returns the lyric line for the current playback
// position.
func (s *Server) handleCurrentLyric(w http.ResponseWriter, r *http.Request) {
	p, ok := s.host.Get("lyrics")
	if !ok {
		respondError(w, http.StatusNotFound, "lyrics plugin not registered")
		return
	}
	lyrics, ok := p.(*plugin.Lyrics)
	if !ok {
		respondError(w, http.StatusNotFound, "lyrics plugin not registered")
		return
	}

	session := s.ctrl.Session()
	if session.Track == nil {
		respondError(w, http.StatusNotFound, "nothing playing")
		return
	}

	line, ok := lyrics.CurrentLine(session.Track.URI, session.Position)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"line": nil,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"line": line,
	})
}
