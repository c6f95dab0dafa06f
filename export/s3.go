package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/plonegovbr/transmute/types"
)

// ObjectClient abstracts the S3 operations the exporter needs.
// Satisfied by *s3.Client; stubs are used for testing.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Exporter writes artifacts to an S3 bucket using the same key layout as
// the filesystem backend. S3 has no multi-object rename, so per-record
// atomicity is best effort: on failure every object already written for
// the record is deleted before the error surfaces.
type S3Exporter struct {
	client           ObjectClient
	bucket           string
	prefix           string
	meta             *types.RunMeta
	keepDefaultPages bool
	blobFiles        []string
}

// S3Config holds the S3 destination coordinates.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// Validate checks the S3 destination coordinates.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket must not be empty")
	}
	return nil
}

// NewS3Exporter creates an S3 exporter using the AWS default credential
// chain (env vars, shared config, IAM role).
func NewS3Exporter(ctx context.Context, meta *types.RunMeta, keepDefaultPages bool, s3cfg S3Config) (*S3Exporter, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3ExporterWithClient(s3.NewFromConfig(awsConfig), meta, keepDefaultPages, s3cfg), nil
}

// NewS3ExporterWithClient creates an S3 exporter over an existing client.
func NewS3ExporterWithClient(client ObjectClient, meta *types.RunMeta, keepDefaultPages bool, s3cfg S3Config) *S3Exporter {
	return &S3Exporter{
		client:           client,
		bucket:           s3cfg.Bucket,
		prefix:           strings.Trim(s3cfg.Prefix, "/"),
		meta:             meta,
		keepDefaultPages: keepDefaultPages,
	}
}

func (e *S3Exporter) key(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if e.prefix != "" {
		segments = append(segments, e.prefix)
	}
	segments = append(segments, parts...)
	return strings.Join(segments, "/")
}

func (e *S3Exporter) put(ctx context.Context, key string, data []byte) error {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &e.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	return err
}

// Export writes one record and its attachments.
func (e *S3Exporter) Export(ctx context.Context, item types.Item) (types.ItemFiles, error) {
	var files types.ItemFiles

	data, blobs, files, err := prepareItem(item)
	if err != nil {
		return files, err
	}

	written := make([]string, 0, len(blobs)+1)
	fail := func(err error) (types.ItemFiles, error) {
		for _, key := range written {
			_, _ = e.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &e.bucket, Key: &key})
		}
		return files, err
	}

	for _, blob := range blobs {
		key := e.key(ContentDir, blob.Key)
		if err := e.put(ctx, key, blob.Data); err != nil {
			return fail(fmt.Errorf("cannot write blob %s: %w", blob.Key, err))
		}
		written = append(written, key)
	}
	dataKey := e.key(ContentDir, files.Data)
	if err := e.put(ctx, dataKey, data); err != nil {
		return fail(fmt.Errorf("cannot write record %s: %w", item.UID(), err))
	}
	e.blobFiles = append(e.blobFiles, files.Blobs...)
	return files, nil
}

// WriteIndex writes the consolidated index artifact and the relations
// object, returning the index key.
func (e *S3Exporter) WriteIndex(ctx context.Context, entries []types.IndexEntry, uids map[string]string) (string, error) {
	index, relations := buildIndex(e.meta, entries, e.blobFiles, uids, e.keepDefaultPages)

	relData, err := encodeJSON(relations)
	if err != nil {
		return "", err
	}
	if err := e.put(ctx, e.key(RelationsFile), relData); err != nil {
		return "", fmt.Errorf("cannot write relations artifact: %w", err)
	}

	indexData, err := encodeJSON(index)
	if err != nil {
		return "", err
	}
	indexKey := e.key(ContentDir, IndexFile)
	if err := e.put(ctx, indexKey, indexData); err != nil {
		return "", fmt.Errorf("cannot write index artifact: %w", err)
	}
	return "s3://" + e.bucket + "/" + indexKey, nil
}
