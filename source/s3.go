package source

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Fetcher lists the objects of a bucket under a prefix.
type S3Fetcher struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Fetcher(client *s3.Client, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// NewS3Client loads the shared AWS configuration, optionally for a named profile.
func NewS3Client(ctx context.Context, profile string) (*s3.Client, error) {
	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	defer cancelCfg()

	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (s *S3Fetcher) Fetch(ctx context.Context) ([]Entry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to list s3 objects, %s, %w", s.bucket, err)
		}
		for _, object := range page.Contents {
			entries = append(entries, objectEntry(s.bucket, object))
		}
	}
	return entries, nil
}

func objectEntry(bucket string, object s3types.Object) Entry {
	key := aws.ToString(object.Key)
	return Entry{
		Name:        path.Base(key),
		DownloadURL: "s3://" + bucket + "/" + key,
		Type:        "file",
	}
}
