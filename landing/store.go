// Package landing implements the raw landing zone: an append-only,
// timestamp-partitioned store holding one JSON envelope per ingestion run per
// source. Objects are never rewritten or deleted; the partition path encodes
// source and UTC time components so incremental scans stay cheap.
package landing

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Envelope wraps one ingestion run's payload together with the metadata the
// staging loader needs to attribute every row.
type Envelope struct {
	RunID          string          `json:"run_id"`
	FetchTimestamp time.Time       `json:"fetch_timestamp"`
	Source         string          `json:"source"`
	NumRecords     int             `json:"num_records"`
	Data           json.RawMessage `json:"data"`
}

// Object identifies one landed envelope. Path is stable and unique per
// object; the staging loader uses it as the idempotency key.
type Object struct {
	Path   string
	Source string
}

// Store is the landing zone contract: append-only writes, listing by source,
// and reads by object path.
type Store interface {
	Write(ctx context.Context, env Envelope) (string, error)
	List(ctx context.Context, source string) ([]Object, error)
	Read(ctx context.Context, path string) (*Envelope, error)
}

// FSStore lands objects on the local filesystem under
// <root>/raw/<source>/YYYY/MM/DD/HH/<source>_YYYYMMDD_HHMMSS.json.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed landing store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// partitionDir returns the hour partition for a fetch time, relative to root.
func partitionDir(source string, t time.Time) string {
	t = t.UTC()
	return filepath.Join(
		"raw", source,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", t.Hour()),
	)
}

// objectName returns the filename for an envelope landed at t.
func objectName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%s.json", source, t.UTC().Format("20060102_150405"))
}

// Write lands an envelope and returns its object path relative to the store
// root. Writing the same (source, fetch time) twice is an error: the landing
// zone is append-only and an object, once landed, is immutable.
func (s *FSStore) Write(ctx context.Context, env Envelope) (string, error) {
	if env.Source == "" {
		return "", fmt.Errorf("envelope source is required")
	}
	if env.FetchTimestamp.IsZero() {
		return "", fmt.Errorf("envelope fetch_timestamp is required")
	}

	rel := filepath.Join(partitionDir(env.Source, env.FetchTimestamp), objectName(env.Source, env.FetchTimestamp))
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("failed to create partition directory: %w", err)
	}

	if _, err := os.Stat(abs); err == nil {
		return "", fmt.Errorf("object already exists: %s", rel)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// Write to a temp file in the same directory and rename so readers
	// never observe a partially written object.
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".landing-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	return filepath.ToSlash(rel), nil
}

// List returns all objects for a source, sorted by path. Because partition
// paths encode UTC time components, path order is ingestion order.
func (s *FSStore) List(ctx context.Context, source string) ([]Object, error) {
	base := filepath.Join(s.root, "raw", source)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var objects []Object
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		objects = append(objects, Object{Path: filepath.ToSlash(rel), Source: source})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list landing objects: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// Read loads one envelope by object path.
func (s *FSStore) Read(ctx context.Context, path string) (*Envelope, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read landing object %s: %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse landing object %s: %w", path, err)
	}
	return &env, nil
}
