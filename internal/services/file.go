package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sitedesk/apiserver/internal/storage"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// AllowedMimeTypes lists the content types accepted for upload.
var AllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ErrObjectMissing is returned when a file row exists but its bytes do not.
var ErrObjectMissing = errors.New("file not found in storage")

// FileRepository defines persistence operations for file metadata.
type FileRepository interface {
	Create(ctx context.Context, f types.File) (types.File, error)
	List(ctx context.Context, page store.Page) ([]types.File, int, error)
	GetByID(ctx context.Context, id string) (types.File, error)
	GetByFilename(ctx context.Context, filename string) (types.File, error)
	UpdateDescription(ctx context.Context, f types.File) (types.File, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore holds file contents.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload is a file received from a client.
type Upload struct {
	OriginalFilename string
	Data             []byte
	Description      *string
}

// FileService stores uploads in object storage and their metadata in the
// database.
type FileService struct {
	repo    FileRepository
	objects ObjectStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewFileService(repo FileRepository, objects ObjectStore, logger *slog.Logger) *FileService {
	return &FileService{repo: repo, objects: objects, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *FileService) WithClock(now func() time.Time) *FileService {
	s.now = now
	return s
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Upload sniffs the content type, stores the bytes under a fresh key and
// records the metadata.
func (s *FileService) Upload(ctx context.Context, in Upload) (types.File, error) {
	if len(in.Data) == 0 {
		return types.File{}, invalid("File is empty")
	}
	original := filepath.Base(strings.TrimSpace(in.OriginalFilename))
	if original == "." || original == string(filepath.Separator) {
		original = ""
	}
	if original == "" {
		return types.File{}, invalid("File name is required")
	}

	detected := mimetype.Detect(in.Data)
	mimeType, ok := allowedType(detected)
	if !ok {
		return types.File{}, invalid("File type %s not allowed. Allowed types: %s",
			detected.String(), strings.Join(AllowedMimeTypes, ", "))
	}

	ext := strings.ToLower(filepath.Ext(original))
	if !extPattern.MatchString(ext) {
		ext = detected.Extension()
	}
	key := uuid.NewString() + ext

	size := int64(len(in.Data))
	if err := s.objects.Put(ctx, key, bytes.NewReader(in.Data), size, mimeType); err != nil {
		return types.File{}, fmt.Errorf("store object: %w", err)
	}

	f, err := s.repo.Create(ctx, types.File{
		ID:               uuid.NewString(),
		Filename:         key,
		OriginalFilename: original,
		FilePath:         key,
		FileSize:         size,
		MimeType:         mimeType,
		Description:      in.Description,
		UploadedAt:       s.now().UTC(),
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned object", "key", key, "error", delErr)
		}
		return types.File{}, err
	}
	return f, nil
}

// allowedType matches the detected type exactly. Parents are not consulted,
// otherwise HTML would pass as text/plain.
func allowedType(detected *mimetype.MIME) (string, bool) {
	for _, allowed := range AllowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}

func (s *FileService) List(ctx context.Context, page store.Page) ([]types.File, int, error) {
	return s.repo.List(ctx, page)
}

func (s *FileService) Get(ctx context.Context, id string) (types.File, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateDescription replaces the description of a file.
func (s *FileService) UpdateDescription(ctx context.Context, id string, description *string) (types.File, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.File{}, err
	}
	now := s.now().UTC()
	f.Description = description
	f.UpdatedAt = &now
	return s.repo.UpdateDescription(ctx, f)
}

// Delete removes the stored object and then the row.
func (s *FileService) Delete(ctx context.Context, id string) error {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, f.Filename); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

// Open returns the metadata and contents of a file. The caller closes the
// reader.
func (s *FileService) Open(ctx context.Context, id string) (types.File, io.ReadCloser, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.File{}, nil, err
	}
	return s.open(ctx, f)
}

// OpenByKey is Open for the public uploads path, addressed by storage key.
func (s *FileService) OpenByKey(ctx context.Context, key string) (types.File, io.ReadCloser, error) {
	if !storage.ValidKey(key) {
		return types.File{}, nil, store.ErrNotFound
	}
	f, err := s.repo.GetByFilename(ctx, key)
	if err != nil {
		return types.File{}, nil, err
	}
	return s.open(ctx, f)
}

func (s *FileService) open(ctx context.Context, f types.File) (types.File, io.ReadCloser, error) {
	rc, err := s.objects.Get(ctx, f.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return types.File{}, nil, ErrObjectMissing
		}
		return types.File{}, nil, err
	}
	return f, rc, nil
}
