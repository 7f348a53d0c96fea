package model

import "fmt"

// RepeatMode controls what happens when the playlist runs out.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// ParseRepeatMode validates a repeat mode string.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch RepeatMode(s) {
	case RepeatNone, RepeatOne, RepeatAll:
		return RepeatMode(s), nil
	}
	return "", fmt.Errorf("invalid repeat mode: %q", s)
}

// Playlist is the persisted form of a named playlist.
type Playlist struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"uniqueIndex;size:191"`
	TrackIDs  string `json:"-" gorm:"column:track_ids;type:text"` // JSON-encoded ordered track IDs.
	CreatedAt int64  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt int64  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName keeps the legacy table name.
func (Playlist) TableName() string { return "playlists" }
