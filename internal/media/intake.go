package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrFileTooLarge   = errors.New("audio file too large")
	ErrDisallowedType = errors.New("disallowed audio mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrEmptyFile      = errors.New("audio file is empty")
)

const sniffLen = 3072

// transientPrefix starts every file Intake writes; transcoder output derives
// its name from the input and keeps it.
const transientPrefix = "upload-"

// Upload is an accepted file sitting in the transient directory.
type Upload struct {
	Path         string
	MimeType     string
	Extension    string
	SizeBytes    int64
	OriginalName string
}

// Intake validates uploads and writes them to the transient directory.
type Intake struct {
	tmpDir         string
	maxUploadBytes int64
}

func NewIntake(tmpDir string, maxUploadBytes int64) (*Intake, error) {
	if strings.TrimSpace(tmpDir) == "" {
		return nil, fmt.Errorf("transient directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transient directory: %w", err)
	}

	return &Intake{
		tmpDir:         tmpDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (in *Intake) MaxUploadBytes() int64 {
	return in.maxUploadBytes
}

func (in *Intake) TmpDir() string {
	return in.tmpDir
}

// Save sniffs src, rejects executables and non-audio content, and streams it
// to a new transient file. On error nothing is left on disk.
func (in *Intake) Save(_ context.Context, originalName string, src io.Reader) (*Upload, error) {
	sniff := make([]byte, sniffLen)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading upload: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if len(sniff) == 0 {
		return nil, ErrEmptyFile
	}
	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	mime := mimetype.Detect(sniff)
	mimeType := trimMimeParams(mime.String())
	if !isAllowedMimeType(mimeType) {
		return nil, ErrDisallowedType
	}

	tmpFile, err := os.CreateTemp(in.tmpDir, transientPrefix+uuid.NewString()+"-*"+mime.Extension())
	if err != nil {
		return nil, fmt.Errorf("creating transient file: %w", err)
	}
	tmpPath := tmpFile.Name()
	keep := false
	defer func() {
		_ = tmpFile.Close()
		if !keep {
			_ = os.Remove(tmpPath)
		}
	}()

	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(tmpFile, io.LimitReader(fullReader, in.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing transient file: %w", err)
	}
	if written > in.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing transient file: %w", err)
	}

	keep = true
	return &Upload{
		Path:         tmpPath,
		MimeType:     mimeType,
		Extension:    mime.Extension(),
		SizeBytes:    written,
		OriginalName: sanitizeOriginalName(originalName),
	}, nil
}

func sanitizeOriginalName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload.bin"
	}
	if len(name) > 255 {
		return name[:255]
	}
	return name
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

// Browsers record voice notes into webm/ogg/mp4 containers, so those video
// types are accepted alongside audio/*.
func isAllowedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(mimeType, "audio/") {
		return true
	}

	switch mimeType {
	case "video/webm", "video/ogg", "application/ogg", "video/mp4", "video/3gpp", "video/quicktime":
		return true
	default:
		return false
	}
}
