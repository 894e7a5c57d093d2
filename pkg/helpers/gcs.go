package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

var ErrStorageNotConfigured = errors.New("gcs not configured")

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// UploadObject uploads bytes from r into bucket/objectPath with the provided contentType
func UploadObject(ctx context.Context, client *storage.Client, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	wc := client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return PublicURL(bucket, objectPath), nil
}

// AvatarUploader stores profile pictures under avatars/<uid>/.
type AvatarUploader struct {
	Client *storage.Client
	Bucket string
}

func NewAvatarUploader(client *storage.Client, bucket string) *AvatarUploader {
	return &AvatarUploader{Client: client, Bucket: bucket}
}

func (u *AvatarUploader) Upload(ctx context.Context, uid, filename, contentType string, r io.Reader) (string, error) {
	if u == nil || u.Client == nil || u.Bucket == "" {
		return "", ErrStorageNotConfigured
	}
	return UploadObject(ctx, u.Client, u.Bucket, AvatarPath(uid, filename), contentType, r)
}

// AvatarPath names a new object for uid, keeping the upload's extension.
func AvatarPath(uid, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join("avatars", uid, uuid.NewString()+ext)
}

// PublicURL builds a public URL for an object (assuming public read access or signed URLs)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
