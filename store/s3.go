package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"cda-delta-clone/config"
)

// S3Store is the AWS S3 Object-Store Gateway backend.
//
// Grounded on akashsharma95-artic-mirror/storage/s3.go's S3Storage,
// generalized from Write/Read/List to the full spec §4.A capability
// set.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds an S3Store for the given resolved credentials, bucket
// and key prefix.
func NewS3(ctx context.Context, creds config.Credentials, bucket, prefix string) (*S3Store, error) {
	provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(creds.Region),
		awsconfig.WithCredentialsProvider(provider),
		awsconfig.WithRetryer(func() awssdk.Retryer { return retry.AddWithMaxAttempts(retry.NewStandard(), 1) }),
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(creds.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// normalizeKey accepts either a bare key or a full "s3://bucket/key"
// URI (as manifest dataFilesPath and target_table_uri values arrive)
// and returns the bucket-relative key.
func (s *S3Store) normalizeKey(key string) string {
	rest, ok := strings.CutPrefix(key, "s3://")
	if !ok {
		return key
	}
	if stripped, ok := strings.CutPrefix(rest, s.bucket+"/"); ok {
		return stripped
	}
	// Bucket in the URI doesn't match this store's configured bucket
	// (shouldn't happen in practice); fall back to stripping just the
	// first path segment.
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}

func (s *S3Store) fullKey(key string) string {
	key = s.normalizeKey(key)
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3Store) Scheme() string { return "s3" }

func (s *S3Store) URIFor(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.fullKey(key))
}

func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case 404:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case 403:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case 412, 409:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case 500, 502, 503, 504:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func (s *S3Store) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	fullPrefix := s.fullKey(prefix)
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: awssdk.String(s.bucket),
		Prefix: awssdk.String(fullPrefix),
	}
	if !recursive {
		input.Delimiter = awssdk.String("/")
	}

	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3Error(err)
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:     strings.TrimPrefix(strings.TrimPrefix(*obj.Key, s.prefix), "/"),
				Size:    awssdk.ToInt64(obj.Size),
				ETag:    awssdk.ToString(obj.ETag),
				ModTime: awssdk.ToTime(obj.LastModified),
			})
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, ObjectInfo{
				Key:      strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(*cp.Prefix, s.prefix), "/"), "/"),
				IsPrefix: true,
			})
		}
	}
	return out, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.fullKey(key)),
	})
	if err != nil {
		return ObjectInfo{}, classifyS3Error(err)
	}
	return ObjectInfo{
		Key:     key,
		Size:    awssdk.ToInt64(out.ContentLength),
		ETag:    awssdk.ToString(out.ETag),
		ModTime: awssdk.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string, rng *Range) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.fullKey(key)),
	}
	if rng != nil {
		input.Range = awssdk.String(fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Length-1))
	}
	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	}
	if opts.ContentType != "" {
		input.ContentType = awssdk.String(opts.ContentType)
	}
	if opts.IfNoneMatch {
		input.IfNoneMatch = awssdk.String("*")
	}
	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return classifyS3Error(err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(s.fullKey(key)),
	})
	if err != nil {
		return classifyS3Error(err)
	}
	return nil
}

func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	objs, err := s.List(ctx, prefix, true)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if o.IsPrefix {
			continue
		}
		if err := s.Delete(ctx, o.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
