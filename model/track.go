package model

import "time"

// TrackSource identifies where a track's audio bytes come from.
type TrackSource string

const (
	SourceLocal  TrackSource = "local"  // File under the music directory.
	SourceRemote TrackSource = "remote" // Object resolved through MinIO.
	SourceStream TrackSource = "stream" // Internet radio or other HTTP stream URL.
)

// Track represents an audio track in the music library.
type Track struct {
	ID          int64             `json:"id"`
	URI         string            `json:"uri"` // File path for local tracks, object key for remote ones.
	Title       string            `json:"title"`
	Artist      string            `json:"artist"`
	Album       string            `json:"album"`
	Duration    float64           `json:"duration"` // Duration in seconds, 0 if unknown.
	Tags        map[string]string `json:"tags,omitempty"`
	Source      TrackSource       `json:"source"`
	DecodeReady bool              `json:"decodeReady"` // Set once the backend has decoded the file at least once.

	// MetaRevision is bumped on every tag edit so cached display
	// metadata can be invalidated.
	MetaRevision int64 `json:"metaRevision"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayTitle returns the title, falling back to the tag map and URI.
func (t *Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	if v, ok := t.Tags["title"]; ok && v != "" {
		return v
	}
	return t.URI
}

// SetTag updates one tag and invalidates cached display metadata.
func (t *Track) SetTag(name, value string) {
	if t.Tags == nil {
		t.Tags = make(map[string]string)
	}
	t.Tags[name] = value
	switch name {
	case "title":
		t.Title = value
	case "artist":
		t.Artist = value
	case "album":
		t.Album = value
	}
	t.MetaRevision++
	t.UpdatedAt = time.Now()
}
