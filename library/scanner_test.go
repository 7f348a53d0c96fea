package library

import (
	"os"
	"path/filepath"
	"testing"

	"audiowave/model"
)

// memTrackRepo is an in-memory TrackRepository for scanner tests.
type memTrackRepo struct {
	nextID int64
	byURI  map[string]*model.Track
}

func newMemTrackRepo() *memTrackRepo {
	return &memTrackRepo{byURI: make(map[string]*model.Track)}
}

func (m *memTrackRepo) CreateTrack(track *model.Track) (int64, error) {
	m.nextID++
	track.ID = m.nextID
	t := *track
	m.byURI[track.URI] = &t
	return track.ID, nil
}

func (m *memTrackRepo) GetTrackByID(id int64) (*model.Track, error) {
	for _, t := range m.byURI {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memTrackRepo) GetTrackByURI(uri string) (*model.Track, error) {
	if t, ok := m.byURI[uri]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (m *memTrackRepo) GetTracksByIDs(ids []int64) ([]model.Track, error) {
	var out []model.Track
	for _, id := range ids {
		if t, _ := m.GetTrackByID(id); t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTrackRepo) GetAllTracks() ([]model.Track, error) {
	var out []model.Track
	for _, t := range m.byURI {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTrackRepo) UpdateTrack(track *model.Track) error {
	t := *track
	m.byURI[track.URI] = &t
	return nil
}

func (m *memTrackRepo) DeleteTrackByURI(uri string) error {
	delete(m.byURI, uri)
	return nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIsAudioFile(t *testing.T) {
	cases := map[string]bool{
		"song.mp3":        true,
		"song.FLAC":       true,
		"song.ogg":        true,
		"song.wav":        true,
		"cover.jpg":       false,
		"notes.txt":       false,
		"archive.mp3.bak": false,
	}
	for path, want := range cases {
		if got := IsAudioFile(path); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestScanRegistersAudioFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Band", "Album", "01 Song.mp3"))
	writeFile(t, filepath.Join(root, "Band", "Album", "02 Other.flac"))
	writeFile(t, filepath.Join(root, "Band", "Album", "cover.jpg"))
	writeFile(t, filepath.Join(root, "loose.wav"))

	repo := newMemTrackRepo()
	scanner := NewScanner(root, repo)

	added, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if added != 3 {
		t.Fatalf("Scan() added %d tracks, want 3", added)
	}

	track, err := repo.GetTrackByURI(filepath.Join(root, "Band", "Album", "01 Song.mp3"))
	if err != nil || track == nil {
		t.Fatalf("track not registered: %v", err)
	}
	if track.Title != "01 Song" || track.Artist != "Band" || track.Album != "Album" {
		t.Fatalf("track metadata = %+v", track)
	}
	if track.Source != model.SourceLocal {
		t.Fatalf("track source = %s, want local", track.Source)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"))

	repo := newMemTrackRepo()
	scanner := NewScanner(root, repo)

	if added, _ := scanner.Scan(); added != 1 {
		t.Fatalf("first Scan() added %d, want 1", added)
	}
	if added, _ := scanner.Scan(); added != 0 {
		t.Fatalf("second Scan() added %d, want 0", added)
	}
}

func TestRegisterSkipsNonAudio(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "readme.txt")
	writeFile(t, path)

	repo := newMemTrackRepo()
	scanner := NewScanner(root, repo)

	if err := scanner.Register(path); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if len(repo.byURI) != 0 {
		t.Fatal("non-audio file registered")
	}
}

func TestTrackFromPath(t *testing.T) {
	track := TrackFromPath(filepath.Join("music", "Artist", "Album", "Song.flac"))
	if track.Title != "Song" {
		t.Errorf("Title = %q, want Song", track.Title)
	}
	if track.Artist != "Artist" || track.Album != "Album" {
		t.Errorf("Artist/Album = %q/%q", track.Artist, track.Album)
	}
	if track.Source != model.SourceLocal {
		t.Errorf("Source = %s, want local", track.Source)
	}
}
