package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"audiowave/logger"
	"audiowave/model"

	"github.com/gorilla/mux"
)

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.tracks.GetAllTracks()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tracks")
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

// handleUpdateTags edits track metadata. Edits apply to the library
// record; the queue keeps its snapshot until the track is re-queued.
func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	var tags map[string]string
	if err := json.NewDecoder(r.Body).Decode(&tags); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(tags) == 0 {
		respondError(w, http.StatusBadRequest, "no tags provided")
		return
	}

	track, err := s.tracks.GetTrackByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load track")
		return
	}
	if track == nil {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}

	for name, value := range tags {
		track.SetTag(name, value)
	}
	if err := s.tracks.UpdateTrack(track); err != nil {
		logger.Error("[Server] failed to update track tags",
			logger.Int64("track", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to update track")
		return
	}
	respondJSON(w, http.StatusOK, track)
}

// handleStreamURL issues a temporary download URL for a remote track so
// UIs can preview it without routing bytes through the daemon.
func (s *Server) handleStreamURL(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "object storage not configured")
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	track, err := s.tracks.GetTrackByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load track")
		return
	}
	if track == nil {
		respondError(w, http.StatusNotFound, "track not found")
		return
	}
	if track.Source != model.SourceRemote {
		respondError(w, http.StatusBadRequest, "track is not a remote object")
		return
	}

	u, err := s.store.PresignedURL(r.Context(), track.URI, 15*time.Minute)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to presign track URL")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	added, err := s.scanner.Scan()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "library scan failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"added": added,
	})
}
