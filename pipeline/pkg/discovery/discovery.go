// Package discovery finds election result extracts under a data root, on the
// local filesystem or in S3, and derives each file's metadata from the name
// of the directory holding it.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

// Extract directories are named bweb_{round}t_{UF}_{DDMMYYYYHHMM}.
var dirPattern = regexp.MustCompile(`^bweb_(\d+)t_([A-Z]{2})_(\d{12})`)

const dirDateLayout = "020120061504"

// ParseDirName extracts round, state and generation time from an extract
// directory name. The election year is inferred from the generation time.
func ParseDirName(name string) (record.FileMetadata, bool) {
	m := dirPattern.FindStringSubmatch(name)
	if m == nil {
		return record.FileMetadata{}, false
	}
	round, err := strconv.Atoi(m[1])
	if err != nil {
		return record.FileMetadata{}, false
	}
	generatedAt, err := time.Parse(dirDateLayout, m[3])
	if err != nil {
		return record.FileMetadata{}, false
	}
	return record.FileMetadata{
		Round:       round,
		StateCode:   m[2],
		GeneratedAt: generatedAt,
		Year:        generatedAt.Year(),
	}, true
}

// isExtract reports whether a file inside dir is one of its CSV extracts.
func isExtract(dir, file string) bool {
	return strings.HasSuffix(file, ".csv") && strings.HasPrefix(file, dir)
}

// File is a discovered extract.
type File struct {
	Path     string
	Metadata record.FileMetadata
}

// Source lists and opens extracts.
type Source interface {
	Discover(ctx context.Context) ([]File, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	String() string
}

// DiscoveryError reports a data root that could not be listed.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover files under %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// New returns an S3 source for s3:// roots and a local source otherwise.
func New(ctx context.Context, log *slog.Logger, root string) (Source, error) {
	if strings.HasPrefix(root, "s3://") {
		return NewS3Source(ctx, root)
	}
	return NewLocalSource(log, root), nil
}
