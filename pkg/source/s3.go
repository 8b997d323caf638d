package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Reader = (*s3Reader)(nil)

type s3Reader struct {
	log    logrus.FieldLogger
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Reader creates a Reader backed by S3-compatible storage. Dataset
// names are resolved as keys under the configured prefix.
func NewS3Reader(log logrus.FieldLogger, cfg *config.S3SourceConfig) Reader {
	return &s3Reader{
		log:    log.WithField("component", "s3-source"),
		client: NewS3Client(&cfg.S3Connection),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// key builds the object key for a dataset name.
func (r *s3Reader) key(name string) string {
	name = strings.TrimLeft(name, "/")
	if r.prefix == "" {
		return name
	}

	return r.prefix + "/" + name
}

// Location returns the s3:// URL of a dataset name.
func (r *s3Reader) Location(name string) string {
	return "s3://" + r.bucket + "/" + r.key(name)
}

// Open streams the dataset object. The body is returned unbuffered.
func (r *s3Reader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := r.key(name)

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("getting object %q: %w", key, ErrNotFound)
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	r.log.WithFields(logrus.Fields{
		"bucket": r.bucket,
		"key":    key,
	}).Debug("Opened dataset")

	return out.Body, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

// NewS3Client builds a client for an S3-compatible endpoint. Static
// credentials are used only when both keys are set.
func NewS3Client(cfg *config.S3Connection) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
