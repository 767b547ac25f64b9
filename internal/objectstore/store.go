// Package objectstore keeps uploaded invoice workbooks and generated
// reports under stable URLs.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no object lives at a URL.
	ErrNotFound = errors.New("object not found")

	// ErrForeignURL is returned for a URL outside the store's bucket.
	ErrForeignURL = errors.New("url does not belong to this bucket")

	// ErrInvalidName is returned for an empty or path-like object name.
	ErrInvalidName = errors.New("invalid object name")
)

// Store puts bytes under a name and fetches them back by URL.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
	// BaseURL is the prefix every URL of the store starts with.
	BaseURL() string
}

// ValidateURL picks the first URL of a comma-separated list that lives
// under baseURL.
func ValidateURL(list, baseURL string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if strings.HasPrefix(item, prefix) {
			return item, true
		}
	}
	return "", false
}

// ContentType maps a file name to the MIME type it is stored with.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pdf":
		return "application/pdf"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// UploadName derives a collision-resistant object name from an uploaded
// file name: "q4 sales.xlsx" becomes "q4 sales-48213.xlsx".
func UploadName(fileName string) string {
	base := filepath.Base(fileName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "upload"
	}
	return fmt.Sprintf("%s-%d%s", stem, 10000+rand.IntN(90000), ext)
}

// objectName validates name and returns it unchanged.
func objectName(name string) (string, error) {
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// nameFromURL returns the object name a URL of baseURL points at.
func nameFromURL(url, baseURL string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	name, ok := strings.CutPrefix(url, prefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	return objectName(name)
}
