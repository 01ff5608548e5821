package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/sceneforge/internal/apperr"
	"github.com/bobarin/sceneforge/internal/models"
)

const videoColumns = `
	id, file_name, video_url, orientation, scene_count,
	duration_seconds, has_captions, client_id, recreate, created_at
`

// CreateVideo stores one finished assembly. A zero CreatedAt is filled by the database.
func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}

	query := `
		INSERT INTO videos (
			id, file_name, video_url, orientation, scene_count,
			duration_seconds, has_captions, client_id, recreate, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
		RETURNING created_at
	`

	var createdAt sql.NullTime
	if !video.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: video.CreatedAt, Valid: true}
	}

	err := db.QueryRowContext(
		ctx, query,
		video.ID, video.FileName, video.VideoURL, video.Orientation,
		video.SceneCount, video.DurationSeconds, video.HasCaptions,
		video.ClientID, video.Recreate, createdAt,
	).Scan(&video.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

func (db *DB) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	v := &models.Video{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.FileName, &v.VideoURL, &v.Orientation, &v.SceneCount,
		&v.DurationSeconds, &v.HasCaptions, &v.ClientID, &v.Recreate, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("video", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return v, nil
}

// ListVideos returns videos ordered by creation date (newest first).
func (db *DB) ListVideos(ctx context.Context, limit, offset int) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(
			&v.ID, &v.FileName, &v.VideoURL, &v.Orientation, &v.SceneCount,
			&v.DurationSeconds, &v.HasCaptions, &v.ClientID, &v.Recreate, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	return videos, nil
}

// CountVideos returns the total number of stored videos.
func (db *DB) CountVideos(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}
