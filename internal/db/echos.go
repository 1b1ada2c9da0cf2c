package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"echobox/internal/models"
)

// feedVisibleClause is the SQL form of models.Echo.IsFeedVisible.
const feedVisibleClause = `e.is_public = 1 AND e.status = 'live' AND e.go_live_at <= ?`

const echoSelect = `SELECT e.id, e.owner_id, e.audio_url, e.caption, e.is_public, e.status, e.go_live_at,
	e.object_id, e.upload_status, e.created_at, e.updated_at,
	u.uid, u.username, u.avatar_url
	FROM echos e JOIN users u ON u.id = e.owner_id`

type EchoRepository struct {
	db *DB
}

func NewEchoRepository(db *DB) *EchoRepository {
	return &EchoRepository{db: db}
}

type CreateEchoParams struct {
	OwnerID      string
	AudioURL     string
	Caption      *string
	IsPublic     bool
	Status       models.EchoStatus
	GoLiveAt     time.Time
	ObjectID     *string
	UploadStatus models.UploadStatus
}

func (r *EchoRepository) Create(ctx context.Context, p CreateEchoParams) (*models.Echo, error) {
	id, err := GenerateID("ech")
	if err != nil {
		return nil, fmt.Errorf("generating echo ID: %w", err)
	}
	now := time.Now().UTC()
	uploadStatus := p.UploadStatus
	if uploadStatus == "" {
		uploadStatus = models.UploadStatusPending
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO echos (id, owner_id, audio_url, caption, is_public, status, go_live_at, object_id, upload_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.OwnerID, p.AudioURL, p.Caption, boolToInt(p.IsPublic), string(p.Status), p.GoLiveAt.UTC(),
		p.ObjectID, string(uploadStatus), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating echo: %w", err)
	}

	return &models.Echo{
		ID:           id,
		OwnerID:      p.OwnerID,
		AudioURL:     p.AudioURL,
		Caption:      p.Caption,
		IsPublic:     p.IsPublic,
		Status:       p.Status,
		GoLiveAt:     p.GoLiveAt.UTC(),
		ObjectID:     p.ObjectID,
		UploadStatus: uploadStatus,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FindByID returns the echo with its creator summary populated.
func (r *EchoRepository) FindByID(ctx context.Context, id string) (*models.Echo, error) {
	row := r.db.QueryRowContext(ctx, echoSelect+` WHERE e.id = ?`, id)
	e, err := scanEcho(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying echo: %w", err)
	}
	return e, nil
}

// ListFeed returns feed-visible echos, newest go-live first with creation
// time breaking ties.
func (r *EchoRepository) ListFeed(ctx context.Context, now time.Time, limit, offset int) ([]*models.Echo, error) {
	return r.list(ctx,
		echoSelect+` WHERE `+feedVisibleClause+` ORDER BY e.go_live_at DESC, e.created_at DESC LIMIT ? OFFSET ?`,
		now.UTC(), limit, offset,
	)
}

func (r *EchoRepository) ListPendingByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Echo, error) {
	return r.list(ctx,
		echoSelect+` WHERE e.owner_id = ? AND e.status = 'pending' ORDER BY e.created_at DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
}

func (r *EchoRepository) CountPendingByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM echos WHERE owner_id = ? AND status = 'pending'`, ownerID)
}

func (r *EchoRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Echo, error) {
	return r.list(ctx,
		echoSelect+` WHERE e.owner_id = ? ORDER BY e.created_at DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
}

func (r *EchoRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM echos WHERE owner_id = ?`, ownerID)
}

// ListDuePending returns pending echos whose go-live time has passed, oldest
// first.
func (r *EchoRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*models.Echo, error) {
	return r.list(ctx,
		echoSelect+` WHERE e.status = 'pending' AND e.go_live_at <= ? ORDER BY e.go_live_at ASC LIMIT ?`,
		now.UTC(), limit,
	)
}

// MarkLiveIfPending atomically flips a pending echo to live. It returns false
// when another caller already performed the transition.
func (r *EchoRepository) MarkLiveIfPending(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE echos SET status = 'live', updated_at = ? WHERE id = ? AND status = 'pending'`,
		now.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking echo live: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	return rows > 0, nil
}

func (r *EchoRepository) UpdateCaption(ctx context.Context, id string, caption *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE echos SET caption = ?, updated_at = ? WHERE id = ?`,
		caption, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating caption: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *EchoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM echos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting echo: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *EchoRepository) list(ctx context.Context, query string, args ...any) ([]*models.Echo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying echos: %w", err)
	}
	defer rows.Close()

	echos := make([]*models.Echo, 0)
	for rows.Next() {
		e, err := scanEcho(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning echo: %w", err)
		}
		echos = append(echos, e)
	}

	return echos, rows.Err()
}

func (r *EchoRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting echos: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEcho(row rowScanner) (*models.Echo, error) {
	var e models.Echo
	var caption, objectID, avatarURL sql.NullString
	var status, uploadStatus string
	var creator models.UserSummary

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.AudioURL,
		&caption,
		&e.IsPublic,
		&status,
		&e.GoLiveAt,
		&objectID,
		&uploadStatus,
		&e.CreatedAt,
		&e.UpdatedAt,
		&creator.UID,
		&creator.Username,
		&avatarURL,
	)
	if err != nil {
		return nil, err
	}

	e.Caption = nullStringToPtr(caption)
	e.ObjectID = nullStringToPtr(objectID)
	e.Status = models.EchoStatus(status)
	e.UploadStatus = models.UploadStatus(uploadStatus)
	if avatarURL.Valid {
		creator.ProfilePhotoURL = avatarURL.String
	}
	e.Creator = &creator

	return &e, nil
}
