// README: Media storage on MinIO; uploads pickup photos and videos and returns their durable URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"wastelink/internal/types"
)

var ErrUnsupportedType = errors.New("unsupported media type")

// MaxUploadBytes caps a single upload.
const MaxUploadBytes = 50 << 20

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Storage struct {
	client    objectPutter
	bucket    string
	publicURL string
}

// NewStorage serves objects under publicURL/bucket/object.
func NewStorage(client *minio.Client, bucket, publicURL string) *Storage {
	return &Storage{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

type Upload struct {
	OwnerID  types.ID
	Filename string
	Size     int64
	Body     io.Reader
}

// Put stores the upload under owner/uuid.ext and returns its URL.
func (s *Storage) Put(ctx context.Context, u Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	contentType, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if u.Size <= 0 || u.Size > MaxUploadBytes {
		return "", fmt.Errorf("%w: size %d out of range", ErrUnsupportedType, u.Size)
	}
	object := fmt.Sprintf("%s/%s%s", u.OwnerID, types.NewID(), ext)
	if _, err := s.client.PutObject(ctx, s.bucket, object, u.Body, u.Size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload file to MinIO: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, object), nil
}
