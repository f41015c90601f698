package discovery_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/discovery"
	electiontesting "github.com/malbeclabs/electionlake/utils/pkg/testing"
)

func TestElectionLake_Discovery_ParseDirName(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		meta, ok := discovery.ParseDirName("bweb_1t_AC_051020221321")
		require.True(t, ok)
		require.Equal(t, 1, meta.Round)
		require.Equal(t, "AC", meta.StateCode)
		require.Equal(t, 2022, meta.Year)
		require.Equal(t, time.Date(2022, 10, 5, 13, 21, 0, 0, time.UTC), meta.GeneratedAt)
	})

	t.Run("trailing suffix is allowed", func(t *testing.T) {
		t.Parallel()
		meta, ok := discovery.ParseDirName("bweb_2t_SP_311020221200_extra")
		require.True(t, ok)
		require.Equal(t, 2, meta.Round)
		require.Equal(t, "SP", meta.StateCode)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"", "bweb_1t_ac_051020221321", "bweb_t_AC_051020221321", "bweb_1t_AC_0510", "x_bweb_1t_AC_051020221321", "bweb_1t_AC_991320221321"} {
			_, ok := discovery.ParseDirName(name)
			require.False(t, ok, name)
		}
	})
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("header\n"), 0o644))
}

func TestElectionLake_Discovery_LocalSource(t *testing.T) {
	t.Parallel()

	t.Run("finds extracts in matching directories", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "bweb_1t_AC_051020221321", "bweb_1t_AC_051020221321.csv"))
		writeFile(t, filepath.Join(root, "bweb_1t_AC_051020221321", "readme.txt"))
		writeFile(t, filepath.Join(root, "bweb_1t_AC_051020221321", "other.csv"))
		writeFile(t, filepath.Join(root, "nested", "bweb_2t_RR_311020221500", "bweb_2t_RR_311020221500_part2.csv"))
		writeFile(t, filepath.Join(root, "misc", "bweb_1t_AC_051020221321.csv"))

		src := discovery.NewLocalSource(electiontesting.NewLogger(), root)
		files, err := src.Discover(context.Background())
		require.NoError(t, err)
		require.Len(t, files, 2)
		require.Equal(t, "AC", files[0].Metadata.StateCode)
		require.Equal(t, "RR", files[1].Metadata.StateCode)
		require.Equal(t, 2, files[1].Metadata.Round)

		rc, err := src.Open(context.Background(), files[0].Path)
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, "header\n", string(body))
	})

	t.Run("empty root yields no files", func(t *testing.T) {
		t.Parallel()
		files, err := discovery.NewLocalSource(electiontesting.NewLogger(), t.TempDir()).Discover(context.Background())
		require.NoError(t, err)
		require.Empty(t, files)
	})

	t.Run("missing root is a discovery error", func(t *testing.T) {
		t.Parallel()
		_, err := discovery.NewLocalSource(electiontesting.NewLogger(), filepath.Join(t.TempDir(), "nope")).Discover(context.Background())
		var derr *discovery.DiscoveryError
		require.ErrorAs(t, err, &derr)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unreadable subdirectory is skipped", func(t *testing.T) {
		t.Parallel()
		if os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced for root")
		}
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "bweb_1t_SP_061020241750", "bweb_1t_SP_061020241750.csv"))
		locked := filepath.Join(root, "zz_locked")
		writeFile(t, filepath.Join(locked, "bweb_1t_RJ_061020241750", "bweb_1t_RJ_061020241750.csv"))
		require.NoError(t, os.Chmod(locked, 0o000))
		t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

		src := discovery.NewLocalSource(electiontesting.NewLogger(), root)
		files, err := src.Discover(context.Background())
		require.NoError(t, err)
		require.Len(t, files, 1)
		require.Equal(t, "SP", files[0].Metadata.StateCode)
		require.Equal(t, int64(1), src.Skipped())
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "bweb_1t_SP_061020241750", "bweb_1t_SP_061020241750.csv"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := discovery.NewLocalSource(electiontesting.NewLogger(), root).Discover(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

type fakeS3 struct {
	pages   [][]string
	objects map[string]string
	listErr error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := 0
	if in.ContinuationToken != nil {
		for i := range f.pages {
			if aws.ToString(in.ContinuationToken) == string(rune('a'+i)) {
				page = i
			}
		}
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.pages[page] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('a' + page + 1)))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestElectionLake_Discovery_ParseS3URI(t *testing.T) {
	t.Parallel()

	bucket, prefix, err := discovery.ParseS3URI("s3://results/2022/raw")
	require.NoError(t, err)
	require.Equal(t, "results", bucket)
	require.Equal(t, "2022/raw", prefix)

	bucket, prefix, err = discovery.ParseS3URI("s3://bucket-only")
	require.NoError(t, err)
	require.Equal(t, "bucket-only", bucket)
	require.Empty(t, prefix)

	_, _, err = discovery.ParseS3URI("s3://")
	require.Error(t, err)
	_, _, err = discovery.ParseS3URI("/local/path")
	require.Error(t, err)
}

func TestElectionLake_Discovery_S3Source(t *testing.T) {
	t.Parallel()

	t.Run("pages and filters keys", func(t *testing.T) {
		t.Parallel()
		client := &fakeS3{
			pages: [][]string{
				{"raw/bweb_2t_SP_311020221200/bweb_2t_SP_311020221200.csv", "raw/bweb_1t_AC_051020221321/notes.txt"},
				{"raw/bweb_1t_AC_051020221321/bweb_1t_AC_051020221321.csv"},
			},
			objects: map[string]string{"results/raw/bweb_1t_AC_051020221321/bweb_1t_AC_051020221321.csv": "a;b\n"},
		}
		src, err := discovery.NewS3SourceWithClient(client, "s3://results/raw")
		require.NoError(t, err)

		files, err := src.Discover(context.Background())
		require.NoError(t, err)
		require.Len(t, files, 2)
		require.Equal(t, "s3://results/raw/bweb_1t_AC_051020221321/bweb_1t_AC_051020221321.csv", files[0].Path)
		require.Equal(t, "AC", files[0].Metadata.StateCode)
		require.Equal(t, "SP", files[1].Metadata.StateCode)

		rc, err := src.Open(context.Background(), files[0].Path)
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, "a;b\n", string(body))
	})

	t.Run("list failure", func(t *testing.T) {
		t.Parallel()
		client := &fakeS3{listErr: errors.New("access denied")}
		src, err := discovery.NewS3SourceWithClient(client, "s3://results")
		require.NoError(t, err)
		_, err = src.Discover(context.Background())
		var derr *discovery.DiscoveryError
		require.ErrorAs(t, err, &derr)
	})
}
