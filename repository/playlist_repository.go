package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"audiowave/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaylistRepository defines persistence operations for named playlists.
type PlaylistRepository interface {
	SavePlaylist(name string, trackIDs []int64) (*model.Playlist, error)
	GetPlaylist(name string) (*model.Playlist, []int64, error)
	ListPlaylists() ([]model.Playlist, error)
	RenamePlaylist(oldName, newName string) error
	DeletePlaylist(name string) error
}

type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository creates a playlist repository backed by gorm.
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

func (r *gormPlaylistRepository) SavePlaylist(name string, trackIDs []int64) (*model.Playlist, error) {
	data, err := json.Marshal(trackIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal playlist track IDs: %w", err)
	}

	playlist := &model.Playlist{Name: name, TrackIDs: string(data)}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"track_ids", "updated_at"}),
	}).Create(playlist).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save playlist %q: %w", name, err)
	}
	return playlist, nil
}

func (r *gormPlaylistRepository) GetPlaylist(name string) (*model.Playlist, []int64, error) {
	var playlist model.Playlist
	err := r.db.Where("name = ?", name).First(&playlist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load playlist %q: %w", name, err)
	}

	var ids []int64
	if playlist.TrackIDs != "" {
		if err := json.Unmarshal([]byte(playlist.TrackIDs), &ids); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal playlist track IDs: %w", err)
		}
	}
	return &playlist, ids, nil
}

func (r *gormPlaylistRepository) ListPlaylists() ([]model.Playlist, error) {
	var playlists []model.Playlist
	if err := r.db.Order("name").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return playlists, nil
}

func (r *gormPlaylistRepository) RenamePlaylist(oldName, newName string) error {
	result := r.db.Model(&model.Playlist{}).Where("name = ?", oldName).Update("name", newName)
	if result.Error != nil {
		return fmt.Errorf("failed to rename playlist %q: %w", oldName, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("playlist %q not found", oldName)
	}
	return nil
}

func (r *gormPlaylistRepository) DeletePlaylist(name string) error {
	if err := r.db.Where("name = ?", name).Delete(&model.Playlist{}).Error; err != nil {
		return fmt.Errorf("failed to delete playlist %q: %w", name, err)
	}
	return nil
}
