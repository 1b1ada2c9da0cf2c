package models

import "time"

type EchoStatus string

const (
	EchoStatusPending EchoStatus = "pending"
	EchoStatusLive    EchoStatus = "live"
)

type UploadStatus string

const (
	UploadStatusPending UploadStatus = "pending"
	UploadStatusDone    UploadStatus = "done"
	UploadStatusFailed  UploadStatus = "failed"
)

type Echo struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"-"`
	AudioURL     string       `json:"audioUrl"`
	Caption      *string      `json:"caption,omitempty"`
	IsPublic     bool         `json:"isPublic"`
	Status       EchoStatus   `json:"status"`
	GoLiveAt     time.Time    `json:"goLiveAt"`
	ObjectID     *string      `json:"objectId,omitempty"`
	UploadStatus UploadStatus `json:"uploadStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`

	// Creator is populated by list and event paths; nil otherwise.
	Creator *UserSummary `json:"creator,omitempty"`
}

// IsFeedVisible is the single definition of public feed membership. Store
// queries mirror it in SQL (see db.feedVisibleClause).
func (e *Echo) IsFeedVisible(now time.Time) bool {
	return e.IsPublic && e.Status == EchoStatusLive && !e.GoLiveAt.After(now)
}

// EligibleForGoLive reports whether a pending echo may transition to live.
func (e *Echo) EligibleForGoLive(now time.Time) bool {
	return e.Status == EchoStatusPending && !e.GoLiveAt.After(now)
}

func (e *Echo) GetCaption() string {
	if e.Caption != nil {
		return *e.Caption
	}
	return ""
}
