package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/report"
	"github.com/ethpandaops/datas/pkg/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// writeTestKey is written and removed again by Preflight.
	writeTestKey = ".datas-write-test"

	// maxParallelPuts bounds concurrent PutObject calls per report.
	maxParallelPuts = 4
)

// Compile-time interface check.
var _ Uploader = (*s3Uploader)(nil)

type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
}

// NewS3Uploader creates an Uploader that publishes report directories to an
// S3-compatible bucket.
func NewS3Uploader(log logrus.FieldLogger, cfg *config.S3UploadConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("upload bucket is required")
	}

	return &s3Uploader{
		log:    log.WithField("component", "report-uploader"),
		cfg:    cfg,
		client: source.NewS3Client(&cfg.S3Connection),
	}, nil
}

// Preflight writes a write-test object and deletes it again.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	key := u.key(writeTestKey)
	stamp := "datas write test " + time.Now().UTC().Format(time.RFC3339)

	if err := u.put(ctx, key, strings.NewReader(stamp), "text/plain"); err != nil {
		return fmt.Errorf("writing test object to s3://%s/%s: %w", u.cfg.Bucket, key, err)
	}

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("removing test object from s3://%s/%s: %w", u.cfg.Bucket, key, err)
	}

	return nil
}

// Upload publishes the regular files of a report directory. metrics.json
// goes last so a reader that finds it also finds the rest of the report.
func (u *s3Uploader) Upload(ctx context.Context, localDir string) (string, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return "", fmt.Errorf("reading report directory: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", localDir)
	}

	files, err := reportFiles(localDir)
	if err != nil {
		return "", err
	}

	prefix := u.resolvePrefix(filepath.Base(filepath.Clean(localDir)))

	var rest []string

	hasMetrics := slices.Contains(files, report.MetricsFile)
	for _, name := range files {
		if name != report.MetricsFile {
			rest = append(rest, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPuts)

	for _, name := range rest {
		g.Go(func() error {
			return u.uploadFile(gctx, filepath.Join(localDir, name), prefix+"/"+name)
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	if hasMetrics {
		path := filepath.Join(localDir, report.MetricsFile)
		if err := u.uploadFile(ctx, path, prefix+"/"+report.MetricsFile); err != nil {
			return "", err
		}
	}

	location := fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, prefix)

	u.log.WithFields(logrus.Fields{
		"files":    len(files),
		"location": location,
	}).Info("Report uploaded")

	return location, nil
}

// reportFiles lists the regular, non-hidden files of dir in name order.
// Report directories are flat, so subdirectories are skipped.
func reportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		names = append(names, e.Name())
	}

	return names, nil
}

func (u *s3Uploader) uploadFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	u.log.WithField("key", key).Debug("Uploading file")

	if err := u.put(ctx, key, f, detectContentType(path)); err != nil {
		return fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}

	return nil
}

// put writes one object with the configured storage class and ACL.
func (u *s3Uploader) put(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	_, err := u.client.PutObject(ctx, input)

	return err
}

// resolvePrefix builds the key prefix of a report directory.
func (u *s3Uploader) resolvePrefix(dirName string) string {
	return u.key("runs/" + dirName)
}

// key joins name onto the configured prefix.
func (u *s3Uploader) key(name string) string {
	prefix := strings.Trim(u.cfg.Prefix, "/")
	if prefix == "" {
		prefix = config.DefaultUploadPrefix
	}

	return prefix + "/" + name
}

// reportContentTypes covers report files missing from the system MIME table.
var reportContentTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

func detectContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	if ct, ok := reportContentTypes[ext]; ok {
		return ct
	}

	if ct := mime.TypeByExtension(ext); ext != "" && ct != "" {
		return ct
	}

	return "application/octet-stream"
}
