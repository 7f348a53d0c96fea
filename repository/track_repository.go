package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"audiowave/model"
)

// TrackRepository defines persistence operations for library tracks.
type TrackRepository interface {
	CreateTrack(track *model.Track) (int64, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetTrackByURI(uri string) (*model.Track, error)
	GetTracksByIDs(ids []int64) ([]model.Track, error)
	GetAllTracks() ([]model.Track, error)
	UpdateTrack(track *model.Track) error
	DeleteTrackByURI(uri string) error
}

type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new track repository backed by MySQL.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

func (r *mysqlTrackRepository) CreateTrack(track *model.Track) (int64, error) {
	tags, err := marshalTags(track.Tags)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	track.CreatedAt = now
	track.UpdatedAt = now

	query := `INSERT INTO tracks (uri, title, artist, album, duration, tags, source, meta_revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.Exec(query,
		track.URI, track.Title, track.Artist, track.Album, track.Duration,
		tags, string(track.Source), track.MetaRevision, track.CreatedAt, track.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create track: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for track: %w", err)
	}
	track.ID = id
	return id, nil
}

func (r *mysqlTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	query := selectTrackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

func (r *mysqlTrackRepository) GetTrackByURI(uri string) (*model.Track, error) {
	query := selectTrackColumns + ` FROM tracks WHERE uri = ?`
	return r.scanOne(r.db.QueryRow(query, uri))
}

func (r *mysqlTrackRepository) GetTracksByIDs(ids []int64) ([]model.Track, error) {
	tracks := make([]model.Track, 0, len(ids))
	for _, id := range ids {
		track, err := r.GetTrackByID(id)
		if err != nil {
			return nil, err
		}
		if track != nil {
			tracks = append(tracks, *track)
		}
	}
	return tracks, nil
}

func (r *mysqlTrackRepository) GetAllTracks() ([]model.Track, error) {
	query := selectTrackColumns + ` FROM tracks ORDER BY artist, album, title`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}

func (r *mysqlTrackRepository) UpdateTrack(track *model.Track) error {
	tags, err := marshalTags(track.Tags)
	if err != nil {
		return err
	}
	track.UpdatedAt = time.Now()

	query := `UPDATE tracks SET title = ?, artist = ?, album = ?, duration = ?, tags = ?, meta_revision = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query,
		track.Title, track.Artist, track.Album, track.Duration,
		tags, track.MetaRevision, track.UpdatedAt, track.ID); err != nil {
		return fmt.Errorf("failed to update track %d: %w", track.ID, err)
	}
	return nil
}

func (r *mysqlTrackRepository) DeleteTrackByURI(uri string) error {
	if _, err := r.db.Exec(`DELETE FROM tracks WHERE uri = ?`, uri); err != nil {
		return fmt.Errorf("failed to delete track %s: %w", uri, err)
	}
	return nil
}

const selectTrackColumns = `SELECT id, uri, title, artist, album, duration, tags, source, meta_revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *mysqlTrackRepository) scanOne(row *sql.Row) (*model.Track, error) {
	track, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return track, err
}

func scanTrack(s rowScanner) (*model.Track, error) {
	var track model.Track
	var tags sql.NullString
	var source string
	if err := s.Scan(&track.ID, &track.URI, &track.Title, &track.Artist, &track.Album,
		&track.Duration, &tags, &source, &track.MetaRevision,
		&track.CreatedAt, &track.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track row: %w", err)
	}
	track.Source = model.TrackSource(source)
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &track.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal track tags: %w", err)
		}
	}
	return &track, nil
}

func marshalTags(tags map[string]string) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track tags: %w", err)
	}
	return string(data), nil
}
