package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"echobox/internal/models"
)

// Media is the result of a successful ingest.
type Media struct {
	Locator      string
	ObjectID     *string
	UploadStatus models.UploadStatus
	MimeType     string
	SizeBytes    int64
}

// Pipeline runs intake, optional transcode and storage for one upload. Any
// stage failing aborts the whole ingest; transient files are removed on every
// path.
type Pipeline struct {
	intake     *Intake
	transcoder Transcoder
	local      *LocalStore
	remote     Store
}

// NewPipeline wires the stages. transcoder and remote may be nil; without a
// remote store files are kept in local.
func NewPipeline(intake *Intake, transcoder Transcoder, local *LocalStore, remote Store) *Pipeline {
	return &Pipeline{
		intake:     intake,
		transcoder: transcoder,
		local:      local,
		remote:     remote,
	}
}

func (p *Pipeline) MaxUploadBytes() int64 {
	return p.intake.MaxUploadBytes()
}

func (p *Pipeline) Local() *LocalStore {
	return p.local
}

func (p *Pipeline) Ingest(ctx context.Context, originalName string, src io.Reader) (*Media, error) {
	upload, err := p.intake.Save(ctx, originalName, src)
	if err != nil {
		return nil, err
	}
	defer removeTransient(upload.Path)

	path := upload.Path
	ext := upload.Extension
	contentType := upload.MimeType

	if p.transcoder != nil {
		out, err := p.transcoder.Transcode(ctx, upload.Path)
		if err != nil {
			return nil, fmt.Errorf("transcoding upload: %w", err)
		}
		defer removeTransient(out)
		path = out
		ext = ".mp3"
		contentType = "audio/mpeg"
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcoded file: %w", err)
	}

	name := uuid.NewString() + ext
	store := p.store()
	stored, err := store.Put(ctx, path, name, contentType)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	return &Media{
		Locator:      stored.Locator,
		ObjectID:     stored.ObjectID,
		UploadStatus: models.UploadStatusDone,
		MimeType:     contentType,
		SizeBytes:    info.Size(),
	}, nil
}

// Remove deletes a stored file wherever it lives. Echos keep their locator
// across storage-mode changes, so both stores are asked.
func (p *Pipeline) Remove(ctx context.Context, locator string, objectID *string) error {
	stored := Stored{Locator: locator, ObjectID: objectID}

	var errs []error
	if err := p.local.Delete(ctx, stored); err != nil {
		errs = append(errs, err)
	}
	if p.remote != nil {
		if err := p.remote.Delete(ctx, stored); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard removes the output of an ingest whose echo was never persisted.
func (p *Pipeline) Discard(ctx context.Context, m *Media) {
	if m == nil {
		return
	}
	if err := p.Remove(ctx, m.Locator, m.ObjectID); err != nil {
		slog.Warn("failed to discard media", "component", "media", "locator", m.Locator, "error", err)
	}
}

func (p *Pipeline) store() Store {
	if p.remote != nil {
		return p.remote
	}
	return p.local
}

func removeTransient(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove transient file", "component", "media", "path", path, "error", err)
	}
}
