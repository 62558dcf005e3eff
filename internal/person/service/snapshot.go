package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/internal/storage"
	"github.com/peoplebook/peoplebook/pkg/logger"
)

// SnapshotPrefix is the object key prefix used for exports.
const SnapshotPrefix = "snapshots/people-"

var (
	ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")
	// ErrNoSnapshots is returned by Import when no key is given and nothing was exported yet.
	ErrNoSnapshots = errors.New("no snapshot to import")
)

// SnapshotStore is the object storage used for exports; storage.MinIOStorage
// implements it.
type SnapshotStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
	LatestKey(ctx context.Context, prefix string) (string, error)
}

type SnapshotInfo struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	URL   string `json:"url,omitempty"`
}

// Export writes every stored person as a JSON array object and returns its
// key with a short-lived download URL.
func (s *Service) Export(ctx context.Context) (info *SnapshotInfo, err error) {
	defer func(start time.Time) { s.observe("export", start, err) }(time.Now())
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	all, err := s.repo.Find(ctx, person.QuerySpec{Sorts: []person.SortKey{{Field: person.FieldID, Order: person.Ascending}}})
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(all)
	if err != nil {
		return nil, err
	}
	key := SnapshotPrefix + s.now().UTC().Format("20060102T150405.000000000") + ".json"
	if err := s.snapshots.UploadFile(ctx, key, bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	info = &SnapshotInfo{Key: key, Count: len(all)}
	if u, err := s.snapshots.GetPresignedURL(ctx, key, 15*time.Minute); err == nil {
		info.URL = u
	} else {
		logger.Warnf("snapshot %s: presign failed: %v", key, err)
	}
	return info, nil
}

// Import inserts the people stored in snapshot key; an empty key selects the
// most recent export. Ids are kept, so importing into a store that still
// holds them fails with a duplicate key error.
func (s *Service) Import(ctx context.Context, key string) (out []*person.Person, err error) {
	defer func(start time.Time) { s.observe("import", start, err) }(time.Now())
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	if key == "" {
		if key, err = s.snapshots.LatestKey(ctx, SnapshotPrefix); err != nil {
			if errors.Is(err, storage.ErrNoObjects) {
				return nil, fmt.Errorf("%w: %v", ErrNoSnapshots, err)
			}
			return nil, err
		}
	}
	rc, err := s.snapshots.DownloadFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download snapshot %s: %w", key, err)
	}
	defer rc.Close()
	var people []*person.Person
	if err := json.NewDecoder(rc).Decode(&people); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	for i, p := range people {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot %s entry %d: %w", key, i, err)
		}
	}
	return s.repo.InsertMany(ctx, people)
}
