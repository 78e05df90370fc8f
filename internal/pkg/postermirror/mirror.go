package postermirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/repository"
)

// PosterMaxWidth is the stored poster width; taller sources keep their
// aspect ratio.
const PosterMaxWidth = 500

const (
	downloadTimeout = 30 * time.Second
	maxPosterBytes  = 10 << 20
	jpegQuality     = 85
)

// Mirror copies poster artwork of completed requests into an S3 bucket so
// the library keeps its artwork when the upstream CDN drops it.
type Mirror struct {
	s3Client   *s3.Client
	config     *Config
	requests   repository.TrackedRequestRepository
	httpClient *http.Client
}

// NewMirror creates a mirror from the given configuration. Returns an error
// when the mirror is disabled or the bucket is not reachable.
func NewMirror(cfg *Config, requests repository.TrackedRequestRepository) (*Mirror, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("poster mirror is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	m := &Mirror{
		s3Client:   s3Client,
		config:     cfg,
		requests:   requests,
		httpClient: &http.Client{Timeout: downloadTimeout},
	}

	if err := m.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[PosterMirror] Successfully initialized S3 client for bucket: %s", cfg.BucketName)
	return m, nil
}

// testConnection checks that the bucket is accessible
func (m *Mirror) testConnection() error {
	_, err := m.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(m.config.BucketName),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", m.config.BucketName, err)
	}
	return nil
}

// RunOnce mirrors the posters of up to limit completed requests that have
// none yet. Failures are logged and retried on the next pass.
func (m *Mirror) RunOnce(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := m.requests.ListCompletedWithoutMirror(limit)
	if err != nil {
		return 0, fmt.Errorf("list requests without mirrored poster: %w", err)
	}

	mirrored := 0
	for i := range rows {
		if ctx.Err() != nil {
			return mirrored, ctx.Err()
		}
		row := rows[i]
		if row.PosterURL == "" {
			continue
		}

		key, err := m.mirrorPoster(ctx, row.PosterURL, row.MediaType, row.MediaID)
		if err != nil {
			log.Errorf("[PosterMirror] Mirroring poster of request %d failed: %v", row.ID, err)
			continue
		}
		if err := m.requests.SetPosterMirrorKey(row.ID, key); err != nil {
			log.Errorf("[PosterMirror] Storing mirror key for request %d failed: %v", row.ID, err)
			continue
		}
		log.Infof("[PosterMirror] Mirrored poster of request %d to %s", row.ID, key)
		mirrored++
	}
	return mirrored, nil
}

// mirrorPoster downloads, resizes and uploads one poster, returning the
// object key.
func (m *Mirror) mirrorPoster(ctx context.Context, posterURL, mediaType string, mediaID int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return "", fmt.Errorf("build poster request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poster download returned status=%d", resp.StatusCode)
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return "", fmt.Errorf("decode poster: %w", err)
	}

	if img.Bounds().Dx() > PosterMaxWidth {
		img = imaging.Resize(img, PosterMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode poster: %w", err)
	}

	key := m.config.GetObjectKey(mediaType, mediaID)
	_, err = m.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(int64(buf.Len())),
	})
	if err != nil {
		return "", fmt.Errorf("upload poster to S3: %w", err)
	}

	return key, nil
}
