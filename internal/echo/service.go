// Package echo owns the echo lifecycle: creation, the public feed, owner
// listings, the pending to live transition, caption edits and deletion.
// State changes are announced through a Publisher.
package echo

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"echobox/internal/apperr"
	"echobox/internal/constants"
	"echobox/internal/db"
	"echobox/internal/media"
	"echobox/internal/models"
)

const (
	EventNewEchoLive = "new_echo_live"
	EventUpdateEcho  = "update_echo"
	EventRemoveEcho  = "remove_echo"
)

// Publisher fans an event out to connected listeners. Delivery is best
// effort.
type Publisher interface {
	Publish(event string, payload any)
}

// MediaStore removes media that belongs to a deleted or never-persisted echo.
type MediaStore interface {
	Remove(ctx context.Context, locator string, objectID *string) error
	Discard(ctx context.Context, m *media.Media)
}

// RemovedEcho is the remove_echo payload.
type RemovedEcho struct {
	ID string `json:"id"`
}

type Service struct {
	echos     *db.EchoRepository
	media     MediaStore
	publisher Publisher
	captions  *bluemonday.Policy
	now       func() time.Time
}

func NewService(echos *db.EchoRepository, mediaStore MediaStore, publisher Publisher) *Service {
	return &Service{
		echos:     echos,
		media:     mediaStore,
		publisher: publisher,
		captions:  bluemonday.StrictPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	OwnerID         string
	Media           *media.Media
	Caption         *string
	IsPublic        bool
	DeferVisibility bool
}

// Create persists a new echo for already-ingested media. Media is discarded
// on any failure.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Echo, error) {
	if p.Media == nil || p.Media.Locator == "" {
		return nil, apperr.New(apperr.KindMissingMedia, "Audio file is required.")
	}

	caption, err := s.cleanCaption(p.Caption)
	if err != nil {
		s.media.Discard(ctx, p.Media)
		return nil, err
	}

	now := s.now()
	status := models.EchoStatusLive
	goLiveAt := now
	if p.DeferVisibility {
		status = models.EchoStatusPending
		goLiveAt = now.Add(constants.GoLiveDelay)
	}

	created, err := s.echos.Create(ctx, db.CreateEchoParams{
		OwnerID:      p.OwnerID,
		AudioURL:     p.Media.Locator,
		Caption:      caption,
		IsPublic:     p.IsPublic,
		Status:       status,
		GoLiveAt:     goLiveAt,
		ObjectID:     p.Media.ObjectID,
		UploadStatus: p.Media.UploadStatus,
	})
	if err != nil {
		s.media.Discard(ctx, p.Media)
		return nil, apperr.Internal(fmt.Errorf("persisting echo: %w", err))
	}

	populated, err := s.echos.FindByID(ctx, created.ID)
	if err != nil {
		if delErr := s.echos.Delete(ctx, created.ID); delErr != nil {
			slog.Error("failed to roll back echo", "component", "echo", "echo_id", created.ID, "error", delErr)
		}
		s.media.Discard(ctx, p.Media)
		return nil, apperr.Internal(fmt.Errorf("loading created echo: %w", err))
	}

	if populated.Status == models.EchoStatusLive && populated.IsPublic {
		s.publisher.Publish(EventNewEchoLive, populated)
	}

	return populated, nil
}

type Page struct {
	Page   int
	Limit  int
	Offset int
}

// NewPage clamps page to >= 1 and limit to (0, maxLimit], substituting
// defaultLimit for non-positive values. page is capped so the offset stays
// within int32.
func NewPage(page, limit, defaultLimit, maxLimit int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if maxPage := math.MaxInt32 / limit; page > maxPage {
		page = maxPage
	}
	return Page{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

type ListResult struct {
	Results    []*models.Echo
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Feed lists public live echos, newest go-live first.
func (s *Service) Feed(ctx context.Context, page, limit int) (*ListResult, error) {
	p := NewPage(page, limit, constants.FeedDefaultLimit, constants.FeedMaxLimit)
	now := s.now()

	echos, err := s.echos.ListFeed(ctx, now, p.Limit, p.Offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	visible := echos[:0]
	for _, e := range echos {
		if e.IsFeedVisible(now) {
			visible = append(visible, e)
		}
	}

	return &ListResult{Results: visible, Page: p.Page, Limit: p.Limit}, nil
}

// Pending lists every pending echo owned by ownerID, public or private.
func (s *Service) Pending(ctx context.Context, ownerID string, page, limit int) (*ListResult, error) {
	p := NewPage(page, limit, constants.OwnerDefaultLimit, constants.OwnerMaxLimit)

	echos, err := s.echos.ListPendingByOwner(ctx, ownerID, p.Limit, p.Offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	total, err := s.echos.CountPendingByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &ListResult{Results: echos, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: totalPages(total, p.Limit)}, nil
}

func (s *Service) Mine(ctx context.Context, ownerID string, page, limit int) (*ListResult, error) {
	p := NewPage(page, limit, constants.OwnerDefaultLimit, constants.OwnerMaxLimit)

	echos, err := s.echos.ListByOwner(ctx, ownerID, p.Limit, p.Offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	total, err := s.echos.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &ListResult{Results: echos, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: totalPages(total, p.Limit)}, nil
}

// GoLive moves an owner's pending echo to live once its go-live time has
// passed. Concurrent callers race on a conditional update; only the winner
// publishes.
func (s *Service) GoLive(ctx context.Context, ownerID, echoID string) (*models.Echo, error) {
	notFound := apperr.New(apperr.KindNotFound, "Pending echo not found for this user.")

	e, err := s.echos.FindByID(ctx, echoID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if e.OwnerID != ownerID || e.Status != models.EchoStatusPending {
		return nil, notFound
	}

	now := s.now()
	if !e.EligibleForGoLive(now) {
		return nil, apperr.New(apperr.KindNotYetEligible,
			fmt.Sprintf("It's not time yet. %s remaining.", FormatRemaining(e.GoLiveAt.Sub(now))))
	}

	promoted, err := s.promote(ctx, e.ID, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if promoted == nil {
		return nil, notFound
	}
	return promoted, nil
}

// PromoteDue transitions every pending echo whose go-live time has passed
// and returns how many were promoted.
func (s *Service) PromoteDue(ctx context.Context, batchSize int) (int, error) {
	now := s.now()
	due, err := s.echos.ListDuePending(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due echos: %w", err)
	}

	promotedCount := 0
	for _, e := range due {
		promoted, err := s.promote(ctx, e.ID, now)
		if err != nil {
			slog.Error("error promoting echo", "component", "echo", "echo_id", e.ID, "error", err)
			continue
		}
		if promoted != nil {
			promotedCount++
		}
	}
	return promotedCount, nil
}

// promote returns nil, nil when the echo was no longer pending.
func (s *Service) promote(ctx context.Context, echoID string, now time.Time) (*models.Echo, error) {
	ok, err := s.echos.MarkLiveIfPending(ctx, echoID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	e, err := s.echos.FindByID(ctx, echoID)
	if err != nil {
		return nil, fmt.Errorf("reloading promoted echo: %w", err)
	}
	if e.IsPublic {
		s.publisher.Publish(EventNewEchoLive, e)
	}
	return e, nil
}

func (s *Service) UpdateCaption(ctx context.Context, ownerID, echoID string, caption *string) (*models.Echo, error) {
	e, err := s.ownedEcho(ctx, ownerID, echoID, "Not authorized to update this echo")
	if err != nil {
		return nil, err
	}

	// A nil caption leaves the stored one in place.
	cleaned := e.Caption
	if caption != nil {
		cleaned, err = s.cleanCaption(caption)
		if err != nil {
			return nil, err
		}
	}

	if err := s.echos.UpdateCaption(ctx, e.ID, cleaned); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Echo not found")
		}
		return nil, apperr.Internal(err)
	}

	updated, err := s.echos.FindByID(ctx, e.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.publisher.Publish(EventUpdateEcho, updated)
	return updated, nil
}

// Delete removes the echo row and then its media. Media removal failures are
// logged; the row deletion and remove_echo event still happen.
func (s *Service) Delete(ctx context.Context, ownerID, echoID string) error {
	e, err := s.ownedEcho(ctx, ownerID, echoID, "Not authorized to delete this echo")
	if err != nil {
		return err
	}

	if err := s.echos.Delete(ctx, e.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "Echo not found")
		}
		return apperr.Internal(err)
	}

	if err := s.media.Remove(ctx, e.AudioURL, e.ObjectID); err != nil {
		slog.Warn("failed to remove echo media", "component", "echo", "echo_id", e.ID, "error", err)
	}

	s.publisher.Publish(EventRemoveEcho, RemovedEcho{ID: e.ID})
	return nil
}

func (s *Service) ownedEcho(ctx context.Context, ownerID, echoID, forbiddenMsg string) (*models.Echo, error) {
	e, err := s.echos.FindByID(ctx, echoID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "Echo not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if e.OwnerID != ownerID {
		return nil, apperr.New(apperr.KindForbidden, forbiddenMsg)
	}
	return e, nil
}

func (s *Service) cleanCaption(caption *string) (*string, error) {
	if caption == nil {
		return nil, nil
	}
	// Captions are plain text: strip markup, keep the literal characters.
	cleaned := strings.TrimSpace(html.UnescapeString(s.captions.Sanitize(*caption)))
	if cleaned == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(cleaned) > constants.MaxCaptionLength {
		return nil, apperr.New(apperr.KindBadRequest,
			fmt.Sprintf("Caption must be at most %d characters", constants.MaxCaptionLength))
	}
	return &cleaned, nil
}

// FormatRemaining renders d as "Xh Ym", truncating toward zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func totalPages(total, limit int) int {
	if limit <= 0 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
