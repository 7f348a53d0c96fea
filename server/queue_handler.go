package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"audiowave/model"

	"github.com/gorilla/mux"
)

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	queue := s.ctrl.Queue()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracks":  queue.Tracks(),
		"current": queue.CurrentIndex(),
		"repeat":  queue.RepeatMode(),
		"shuffle": queue.Shuffle(),
	})
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIDs []int64 `json:"trackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TrackIDs) == 0 {
		respondError(w, http.StatusBadRequest, "trackIds must not be empty")
		return
	}

	tracks, err := s.tracks.GetTracksByIDs(req.TrackIDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load tracks")
		return
	}
	if len(tracks) == 0 {
		respondError(w, http.StatusNotFound, "no matching tracks")
		return
	}

	s.ctrl.AddTracks(tracks...)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"added": len(tracks),
	})
}

// handleQueueAddStream enqueues an internet radio or other HTTP stream
// URL. Stream tracks live only in the queue; they never join the
// library catalog.
func (s *Server) handleQueueAddStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		respondError(w, http.StatusBadRequest, "url must be an http or https stream")
		return
	}

	s.ctrl.AddTracks(model.Track{
		URI:    req.URL,
		Title:  req.Title,
		Source: model.SourceStream,
	})
	respondOK(w)
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	s.ctrl.RemoveTrack(index)
	respondOK(w)
}

func (s *Server) handleQueueReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.ctrl.Reorder(req.From, req.To)
	respondOK(w)
}

func (s *Server) handleQueueSelect(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	s.ctrl.Select(index)
	respondOK(w)
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := model.ParseRepeatMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.ctrl.SetRepeatMode(mode)
	respondOK(w)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ToggleShuffle()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"shuffle": s.ctrl.Queue().Shuffle(),
	})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ReplaceQueue(nil, -1)
	respondOK(w)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "invalid index")
		return 0, false
	}
	return index, true
}
