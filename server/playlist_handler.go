package server

import (
	"encoding/json"
	"net/http"

	"audiowave/logger"

	"github.com/gorilla/mux"
)

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.lists.ListPlaylists()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	respondJSON(w, http.StatusOK, playlists)
}

// handleSavePlaylist stores the given tracks, or the current queue when
// the body omits trackIds, under the playlist name.
func (s *Server) handleSavePlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		respondError(w, http.StatusBadRequest, "playlist name required")
		return
	}

	var req struct {
		TrackIDs *[]int64 `json:"trackIds"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var ids []int64
	if req.TrackIDs != nil {
		ids = *req.TrackIDs
	} else {
		for _, t := range s.ctrl.Queue().Tracks() {
			ids = append(ids, t.ID)
		}
	}

	playlist, err := s.lists.SavePlaylist(name, ids)
	if err != nil {
		logger.Error("[Server] failed to save playlist",
			logger.String("name", name), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to save playlist")
		return
	}
	respondJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleRenamePlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewName == "" {
		respondError(w, http.StatusBadRequest, "newName required")
		return
	}
	if err := s.lists.RenamePlaylist(name, req.NewName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.lists.DeletePlaylist(name); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}
	respondOK(w)
}

// handleLoadPlaylist replaces the queue with a named playlist.
func (s *Server) handleLoadPlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	playlist, ids, err := s.lists.GetPlaylist(name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	if playlist == nil {
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}

	tracks, err := s.tracks.GetTracksByIDs(ids)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load playlist tracks")
		return
	}

	s.ctrl.ReplaceQueue(tracks, -1)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":   playlist.Name,
		"tracks": len(tracks),
	})
}
