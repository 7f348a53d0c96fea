package server

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := s.ctrl.Session()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":    session.State,
		"track":    session.Track,
		"position": session.Position.Seconds(),
		"duration": session.Duration.Seconds(),
		"volume":   session.Volume,
		"repeat":   session.Repeat,
		"shuffle":  session.Shuffle,
		"queueLen": s.ctrl.Queue().Len(),
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Play()
	respondOK(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Pause()
	respondOK(w)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Toggle()
	respondOK(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	respondOK(w)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Next()
	respondOK(w)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Previous()
	respondOK(w)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Skip()
	respondOK(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"` // Seconds.
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Position < 0 {
		respondError(w, http.StatusBadRequest, "position must be non-negative")
		return
	}
	s.ctrl.Seek(time.Duration(req.Position * float64(time.Second)))
	respondOK(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level int `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Level < 0 || req.Level > 100 {
		respondError(w, http.StatusBadRequest, "level must be between 0 and 100")
		return
	}
	s.ctrl.SetVolume(req.Level)
	respondOK(w)
}
