package client

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// S3 error codes meaning the stored bytes did not match the declared digest.
var digestErrorCodes = map[string]bool{
	"BadDigest":                   true,
	"InvalidDigest":               true,
	"XAmzContentSHA256Mismatch":   true,
	"XAmzContentChecksumMismatch": true,
}

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS; set for MinIO and friends
	AccessKey string
	SecretKey string
	Prefix    string
	DeviceID  string
}

// S3Uploader writes images straight to an object store. The object store
// verifies ChecksumSHA256 itself, which plays the part of the server-side
// checksum check.
type S3Uploader struct {
	client   *s3.Client
	bucket   string
	prefix   string
	deviceID string
}

func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:   client,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		deviceID: opts.DeviceID,
	}, nil
}

// ObjectKey is stable per image, so a retried upload overwrites the same
// object instead of creating a second one.
func (u *S3Uploader) ObjectKey(img *models.ImageRecord) string {
	return path.Join(u.prefix, u.deviceID, img.CapturedAt.UTC().Format("2006/01/02"), img.EventID, img.ID+".jpg")
}

func (u *S3Uploader) UploadImage(ctx context.Context, img *models.ImageRecord) error {
	sum, err := hex.DecodeString(img.Checksum)
	if err != nil {
		return fmt.Errorf("image %s has malformed checksum: %w: %w", img.ID, common.ErrStorage, err)
	}

	f, size, err := openImage(img)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = putObject(u.client, ctx, &s3.PutObjectInput{
		Bucket:         aws.String(u.bucket),
		Key:            aws.String(u.ObjectKey(img)),
		Body:           f,
		ContentLength:  aws.Int64(size),
		ContentType:    aws.String(common.ImageContentType),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(sum)),
		Metadata: map[string]string{
			"device-id": u.deviceID,
			"event-id":  img.EventID,
			"seq":       strconv.Itoa(img.Seq),
			"sha256":    img.Checksum,
		},
	})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && digestErrorCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("put image %s: %w: %w", img.ID, common.ErrIntegrity, err)
	}
	return fmt.Errorf("put image %s: %w: %w", img.ID, common.ErrNetwork, err)
}
