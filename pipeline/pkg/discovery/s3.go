package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// ParseS3URI splits s3://bucket/prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing s3:// scheme", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: empty bucket")
	}
	return bucket, prefix, nil
}

// NewS3Source loads the default AWS configuration.
func NewS3Source(ctx context.Context, uri string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3SourceWithClient(s3.NewFromConfig(cfg), uri)
}

func NewS3SourceWithClient(client S3API, uri string) (*S3Source, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Source) String() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// Discover lists every object under the prefix and keeps the extracts, in
// key order. Paths are returned as s3:// URIs.
func (s *S3Source) Discover(ctx context.Context) ([]File, error) {
	var files []File
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &DiscoveryError{Root: s.String(), Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			dir := path.Base(path.Dir(key))
			meta, ok := ParseDirName(dir)
			if !ok || !isExtract(dir, path.Base(key)) {
				continue
			}
			files = append(files, File{Path: "s3://" + s.bucket + "/" + key, Metadata: meta})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *S3Source) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}
