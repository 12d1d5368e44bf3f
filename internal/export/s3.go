package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	config "github.com/rainlanguage/orderbook-trades/configs"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the part of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewArchiver(client ObjectPutter, bucket string, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3Client builds an S3 client from the archive configuration. Static
// credentials are used when configured, otherwise the default AWS chain.
func NewS3Client(ctx context.Context, cfg config.S3ArchiveConfig) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive.s3.bucket is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			}, nil
		})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectKey is where a local file is archived for the given contract.
func (a *Archiver) ObjectKey(contract string, localPath string) string {
	return path.Join(a.prefix, strings.ToLower(contract), filepath.Base(localPath))
}

// Upload streams the file at localPath to the bucket and returns its key.
func (a *Archiver) Upload(ctx context.Context, contract string, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	checksum, err := calculateFileChecksum(file)
	if err != nil {
		return "", fmt.Errorf("failed to calculate file checksum: %w", err)
	}

	key := a.ObjectKey(contract, localPath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(localPath)),
		Metadata: map[string]string{
			"contract":  strings.ToLower(contract),
			"checksum":  checksum,
			"file_size": fmt.Sprintf("%d", info.Size()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", localPath, err)
	}

	log.Info().Str("bucket", a.bucket).Str("key", key).Int64("size", info.Size()).Msg("Archived file")
	return key, nil
}

func contentType(localPath string) string {
	if strings.EqualFold(filepath.Ext(localPath), ".csv") {
		return "text/csv"
	}
	return "application/octet-stream"
}

// calculateFileChecksum hashes the whole file and rewinds it.
func calculateFileChecksum(file *os.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
