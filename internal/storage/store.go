// Package storage holds uploaded merchant documents.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DocumentStore is a path-addressed blob store with public retrieval URLs.
type DocumentStore interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, paths ...string) error
	PublicURL(path string) string
	Bucket() string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.\-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// ObjectPath builds {owner}/{folder}/{unixMillis}_{filename}.
func ObjectPath(owner, folder string, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%s/%d_%s", owner, folder, at.UnixMilli(), SanitizeFilename(filename))
}

func publicURL(base, bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	base = strings.TrimRight(base, "/")
	if bucket == "" {
		return base + "/" + strings.Join(segments, "/")
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// DeleteError reports the paths a Delete call could not remove.
type DeleteError struct {
	Failed map[string]error
}

func (e *DeleteError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for p, err := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", p, err))
	}
	return "delete failed for " + strings.Join(parts, "; ")
}

// FailedPaths lists the paths left behind by err, or all paths if err is opaque.
func FailedPaths(err error, attempted []string) []string {
	if err == nil {
		return nil
	}
	de, ok := err.(*DeleteError)
	if !ok {
		return attempted
	}
	out := make([]string, 0, len(de.Failed))
	for _, p := range attempted {
		if _, failed := de.Failed[p]; failed {
			out = append(out, p)
		}
	}
	return out
}
