// Package library keeps the track database in sync with the music
// directory on disk.
package library

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"audiowave/logger"
	"audiowave/model"
	"audiowave/repository"
)

var audioExts = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
}

// IsAudioFile reports whether path has a playable extension.
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// Scanner walks the music directory and registers tracks.
type Scanner struct {
	root string
	repo repository.TrackRepository
}

func NewScanner(root string, repo repository.TrackRepository) *Scanner {
	return &Scanner{root: root, repo: repo}
}

// Scan walks the library root and inserts any track not yet known.
// It returns the number of newly added tracks.
func (s *Scanner) Scan() (int, error) {
	added := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("[Library] skipping unreadable entry",
				logger.String("path", path), logger.ErrorField(err))
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}
		created, err := s.register(path)
		if err != nil {
			return err
		}
		if created {
			added++
		}
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("library scan failed: %w", err)
	}
	logger.Info("[Library] scan complete",
		logger.String("root", s.root), logger.Int("added", added))
	return added, nil
}

// Register adds a single file to the library if it is new.
func (s *Scanner) Register(path string) error {
	if !IsAudioFile(path) {
		return nil
	}
	_, err := s.register(path)
	return err
}

func (s *Scanner) register(path string) (bool, error) {
	existing, err := s.repo.GetTrackByURI(path)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	track := TrackFromPath(path)
	if _, err := s.repo.CreateTrack(&track); err != nil {
		return false, err
	}
	logger.Debug("[Library] registered track", logger.String("uri", path))
	return true, nil
}

// TrackFromPath builds a minimal track record from a file path. Title
// falls back to the file name; artist and album come from the enclosing
// directories when the layout is artist/album/track.
func TrackFromPath(path string) model.Track {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))

	track := model.Track{
		URI:    path,
		Title:  title,
		Source: model.SourceLocal,
	}

	dir := filepath.Dir(path)
	album := filepath.Base(dir)
	artist := filepath.Base(filepath.Dir(dir))
	if album != "." && album != string(filepath.Separator) {
		track.Album = album
	}
	if artist != "." && artist != string(filepath.Separator) {
		track.Artist = artist
	}
	return track
}
