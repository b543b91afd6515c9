package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectPutter is the subset of the S3 client the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Ledger supplies the CLV records and their summary
type Ledger interface {
	Records() []models.CLVRecord
	Summary(window, biasMinSamples int) models.CLVSummary
}

// Snapshot is the archived document
type Snapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     models.CLVSummary  `json:"summary"`
	Records     []models.CLVRecord `json:"records"`
}

// Archiver writes dated snapshots of the CLV ledger to S3
type Archiver struct {
	client         ObjectPutter
	bucket         string
	prefix         string
	ledger         Ledger
	window         int
	biasMinSamples int
	log            zerolog.Logger
}

// NewS3Client builds a client from the default AWS credential chain
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// NewArchiver creates an archiver writing under s3://bucket/prefix
func NewArchiver(client ObjectPutter, bucket, prefix string, ledger Ledger, window, biasMinSamples int, log zerolog.Logger) *Archiver {
	return &Archiver{
		client:         client,
		bucket:         bucket,
		prefix:         prefix,
		ledger:         ledger,
		window:         window,
		biasMinSamples: biasMinSamples,
		log:            log.With().Str("component", "archive").Logger(),
	}
}

// ObjectKey returns the key of a snapshot taken at t, partitioned by day
func (a *Archiver) ObjectKey(t time.Time) string {
	t = t.UTC()
	return path.Join(a.prefix, t.Format("2006/01/02"), fmt.Sprintf("clv-%s.json", t.Format("20060102T150405Z")))
}

// Archive uploads a snapshot of the ledger and returns its key
func (a *Archiver) Archive(ctx context.Context, now time.Time) (string, error) {
	snapshot := Snapshot{
		GeneratedAt: now.UTC(),
		Summary:     a.ledger.Summary(a.window, a.biasMinSamples),
		Records:     a.ledger.Records(),
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := a.ObjectKey(now)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", a.bucket, key, err)
	}

	a.log.Info().
		Str("bucket", a.bucket).
		Str("key", key).
		Int("records", len(snapshot.Records)).
		Msg("clv ledger archived")
	return key, nil
}
