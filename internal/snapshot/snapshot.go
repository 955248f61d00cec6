// Package snapshot produces a content digest of a pipeline's data directory.
// The engine records the digest before and after a run, so a run record shows
// at a glance whether the collaborator scripts changed anything.
package snapshot

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/pipewerk/pipewerk/internal/ctxlog"
)

// hashKey is fixed: digests only need to be comparable across runs of the
// same deployment, not unforgeable.
var hashKey = []byte("pipewerk.data.snapshot.hash.key!")

// Snapshotter digests file trees through the afs abstraction, so the data
// location may be a plain path or any URL scheme afs understands.
type Snapshotter struct {
	fs afs.Service
}

// New constructs a Snapshotter backed by the default afs service.
func New() *Snapshotter {
	return &Snapshotter{fs: afs.New()}
}

// Digest returns a stable hex digest over the names and contents of every
// file under location. A missing or empty location digests to the empty
// string, which compares equal across runs like any other digest.
func (s *Snapshotter) Digest(ctx context.Context, location string) (string, error) {
	if location == "" {
		return "", nil
	}
	norm := normalize(location)

	exists, err := s.fs.Exists(ctx, norm)
	if err != nil {
		return "", fmt.Errorf("failed to probe data location %q: %w", location, err)
	}
	if !exists {
		return "", nil
	}

	var files []string
	if err := s.collect(ctx, norm, &files); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Strings(files)

	h, err := highwayhash.New(hashKey)
	if err != nil {
		return "", fmt.Errorf("failed to initialize digest: %w", err)
	}
	for _, URL := range files {
		data, err := s.fs.DownloadWithURL(ctx, URL)
		if err != nil {
			return "", fmt.Errorf("failed to read %q for digest: %w", URL, err)
		}
		h.Write([]byte(url.Path(URL)))
		h.Write([]byte{0})
		h.Write(data)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	ctxlog.FromContext(ctx).Debug("Data location digested.", "location", location, "files", len(files))
	return digest, nil
}

// collect walks location depth-first, appending file URLs.
func (s *Snapshotter) collect(ctx context.Context, location string, files *[]string) error {
	objects, err := s.fs.List(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", location, err)
	}
	for _, object := range objects {
		if object.IsDir() {
			// Listings include the directory itself; only recurse into children.
			if url.Equals(url.Path(object.URL()), url.Path(location)) {
				continue
			}
			if err := s.collect(ctx, url.Join(location, object.Name()), files); err != nil {
				return err
			}
			continue
		}
		*files = append(*files, object.URL())
	}
	return nil
}

// normalize makes bare OS paths absolute so afs treats them uniformly.
func normalize(location string) string {
	if url.Scheme(location, "") != "" {
		return location
	}
	if url.IsRelative(location) {
		if abs, err := filepath.Abs(location); err == nil {
			return abs
		}
	}
	return location
}
