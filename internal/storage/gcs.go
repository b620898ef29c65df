package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/sitedesk/apiserver/config"
)

// GCSClient stores uploads in a Google Cloud Storage bucket, optionally under
// a name prefix so the site can share a bucket with other content. Objects
// are written with a Cache-Control header because /uploads serves them as
// public assets.
type GCSClient struct {
	client       *storage.Client
	bucket       string
	projectID    string
	prefix       string
	cacheControl string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	prefix, err := normalizePrefix(cfg.Prefix)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:       client,
		bucket:       cfg.Bucket,
		projectID:    cfg.ProjectID,
		prefix:       prefix,
		cacheControl: cfg.CacheControl,
	}, nil
}

// EnsureBucket creates the bucket when it is missing, which needs a project.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

// Put writes the upload. The write is only committed when exactly size bytes
// arrived, so the stored object always matches the recorded file size.
func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = g.cacheControl

	written, err := io.Copy(writer, r)
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short upload for %q: wrote %d of %d bytes", key, written, size)
	}
	if err != nil {
		// Cancelling before Close aborts the upload instead of committing it.
		cancel()
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Get opens a reader for a stored upload.
func (g *GCSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return reader, nil
}

// Delete removes a stored upload.
func (g *GCSClient) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Bucket returns the bucket and prefix uploads are stored under.
func (g *GCSClient) Bucket() string {
	if g.prefix == "" {
		return g.bucket
	}
	return g.bucket + "/" + strings.TrimSuffix(g.prefix, "/")
}

func (g *GCSClient) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.objectName(key))
}

func (g *GCSClient) objectName(key string) string {
	return g.prefix + key
}

// normalizePrefix turns " uploads/site " into "uploads/site/". Dot segments
// are refused so a prefix cannot climb out of itself.
func normalizePrefix(prefix string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "", nil
	}
	if path.Clean(prefix) != prefix || strings.HasPrefix(prefix, "..") {
		return "", fmt.Errorf("invalid gcs prefix %q", prefix)
	}
	return prefix + "/", nil
}
