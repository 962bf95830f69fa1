// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wildlife-challenge-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config holds the Cloudflare R2 (S3-compatible) bucket settings.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// ObjectPutter is the subset of the S3 client used for archiving.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver keeps a copy of every generated manifest and the raw oracle
// reply it was parsed from, so model output can be audited later.
type R2Archiver struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

func NewR2Archiver(ctx context.Context, cfg R2Config) (*R2Archiver, error) {
	if cfg.AccountID == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("R2 account id and bucket are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return NewR2ArchiverWithClient(client, cfg.Bucket), nil
}

func NewR2ArchiverWithClient(client ObjectPutter, bucket string) *R2Archiver {
	return &R2Archiver{client: client, bucket: bucket, now: time.Now}
}

type manifestArchive struct {
	RegionKey   string                 `json:"region_key"`
	Location    string                 `json:"location"`
	CenterLat   float64                `json:"center_lat"`
	CenterLng   float64                `json:"center_lng"`
	Manifest    []models.ManifestEntry `json:"manifest"`
	RawReply    string                 `json:"raw_reply"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// ArchiveManifest uploads manifests/<region_key>/<unix_ms>.json.
func (a *R2Archiver) ArchiveManifest(ctx context.Context, region *models.Region, raw string) error {
	at := a.now().UTC()
	body, err := json.Marshal(manifestArchive{
		RegionKey:   region.RegionKey,
		Location:    region.Location,
		CenterLat:   region.CenterLat,
		CenterLng:   region.CenterLng,
		Manifest:    region.Manifest,
		RawReply:    raw,
		GeneratedAt: at,
	})
	if err != nil {
		return err
	}

	key := fmt.Sprintf("manifests/%s/%d.json", region.RegionKey, at.UnixMilli())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}
