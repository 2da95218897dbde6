// Package reliability performs the maintenance the state database needs
// to stay healthy under continuous ingestion: integrity checks, WAL
// checkpoints, disk-space monitoring, and archive/prune of offers and
// snapshots past their retention window (§4.3, §9, §12).
package reliability

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Archiver uploads msgpack-encoded maintenance batches to an
// S3-compatible bucket before the rows they describe are permanently
// deleted from the state database.
type S3Archiver struct {
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// NewS3Archiver builds an archiver against bucket using the default AWS
// credential chain (environment, shared config, instance role — same
// resolution order the rest of the ecosystem's aws-sdk-go-v2 consumers
// rely on).
func NewS3Archiver(ctx context.Context, bucket string, log zerolog.Logger) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log.With().Str("component", "s3_archiver").Logger(),
	}, nil
}

// UploadBatch puts payload at key in the configured bucket.
func (a *S3Archiver) UploadBatch(ctx context.Context, key string, payload []byte) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s: %w", key, a.bucket, err)
	}
	a.log.Info().Str("key", key).Int("bytes", len(payload)).Msg("uploaded maintenance batch to s3")
	return nil
}
