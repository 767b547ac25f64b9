package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"vatfiling/internal/logger"
)

// GCSBaseURL is the public URL prefix of Cloud Storage objects.
const GCSBaseURL = "https://storage.googleapis.com"

// GCSStore keeps objects in a Cloud Storage bucket, addressed as
// https://storage.googleapis.com/<bucket>/<name>.
type GCSStore struct {
	service *storage.Service
	bucket  string
	log     zerolog.Logger
}

// NewGCSStore authenticates with the service account named by
// GOOGLE_APPLICATION_CREDENTIALS or given inline in GOOGLE_CREDENTIALS.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	const op = "NewGCSStore"

	if bucket == "" {
		return nil, fmt.Errorf("%s: bucket name is required", op)
	}

	var (
		creds []byte
		err   error
	)
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	service, err := storage.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create storage service: %w", op, err)
	}

	return &GCSStore{
		service: service,
		bucket:  bucket,
		log:     logger.WithComponent("objectstore-gcs"),
	}, nil
}

func (s *GCSStore) BaseURL() string {
	return GCSBaseURL + "/" + s.bucket
}

func (s *GCSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	const op = "Put"

	name, err := objectName(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	obj := &storage.Object{Name: name, ContentType: ContentType(name)}
	_, err = s.service.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(obj.ContentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%s: failed to upload %s: %w", op, name, err)
	}

	url := s.BaseURL() + "/" + name
	s.log.Debug().Str("url", url).Int("bytes", len(data)).Msg("Uploaded object")
	return url, nil
}

func (s *GCSStore) Get(ctx context.Context, url string) ([]byte, error) {
	const op = "Get"

	name, err := nameFromURL(url, s.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.service.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrNotFound, url)
		}
		return nil, fmt.Errorf("%s: failed to download %s: %w", op, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, url, err)
	}
	return data, nil
}
