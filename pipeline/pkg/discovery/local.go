package discovery

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/malbeclabs/electionlake/pipeline/pkg/metrics"
)

type LocalSource struct {
	log     *slog.Logger
	root    string
	skipped atomic.Int64
}

func NewLocalSource(log *slog.Logger, root string) *LocalSource {
	if log == nil {
		log = slog.Default()
	}
	return &LocalSource{log: log, root: root}
}

func (s *LocalSource) String() string {
	return s.root
}

// Skipped returns the number of entries below the root that the last
// Discover could not read.
func (s *LocalSource) Skipped() int64 {
	return s.skipped.Load()
}

// Discover walks the root in lexical order. Only an unreadable root is an
// error; unreadable entries below it are logged and skipped.
func (s *LocalSource) Discover(ctx context.Context) ([]File, error) {
	var files []File
	s.skipped.Store(0)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == s.root {
				return err
			}
			s.skipped.Add(1)
			metrics.DiscoverySkippedTotal.Inc()
			s.log.Warn("discovery: skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Base(filepath.Dir(path))
		meta, ok := ParseDirName(dir)
		if !ok || !isExtract(dir, d.Name()) {
			return nil
		}
		files = append(files, File{Path: path, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, &DiscoveryError{Root: s.root, Err: err}
	}
	return files, nil
}

func (s *LocalSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}
