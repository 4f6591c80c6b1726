// internal/services/archive_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/javajoker/catalog-tracker/internal/config"
)

// ArchiveService keeps the raw listing responses of each run, in S3 when
// credentials are configured and on local disk otherwise.
type ArchiveService struct {
	s3Client *s3.S3
	config   config.ArchiveConfig
}

func NewArchiveService(cfg config.ArchiveConfig) (*ArchiveService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.AccessKeyID == "" {
		// Return service without S3 for local development
		return &ArchiveService{config: cfg}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &ArchiveService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// Key names one archived page: <prefix>/<date>/<category>/page_<n>.json
func (s *ArchiveService) Key(category, date string, page int) string {
	return path.Join(s.config.Prefix, date, category, fmt.Sprintf("page_%d.json", page))
}

// StorePage archives one raw response and returns where it went. A nil
// service archives nothing.
func (s *ArchiveService) StorePage(ctx context.Context, category, date string, page int, body []byte) (string, error) {
	if s == nil {
		return "", nil
	}

	key := s.Key(category, date, page)
	if s.s3Client != nil {
		return s.uploadToS3(ctx, key, body)
	}
	return s.writeLocal(key, body)
}

func (s *ArchiveService) uploadToS3(ctx context.Context, key string, body []byte) (string, error) {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.config.S3Bucket, key), nil
}

func (s *ArchiveService) writeLocal(key string, body []byte) (string, error) {
	fullPath := filepath.Join(s.config.LocalDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	return fullPath, nil
}
