package services

import (
	"context"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fraudwatch/fraudwatch/internal/common"
	sc "github.com/fraudwatch/fraudwatch/internal/server/config"
)

// presignExpiry bounds how long an issued upload/download URL stays valid.
const presignExpiry = 15 * time.Minute

// Evidence keys are the client-computed SHA-256 of the blob, so equal
// content always lands on the same object (content-addressable store).
var contentHashShape = regexp.MustCompile(`^[0-9a-f]{64}$`)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// EvidenceService issues presigned URLs against the content-addressable
// evidence store. The core never touches blob bytes; reports reference
// evidence by content hash only.
type EvidenceService struct {
	config *sc.Config
}

func NewEvidenceService(config *sc.Config) *EvidenceService {
	return &EvidenceService{config: config}
}

func (s *EvidenceService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// StorageKey maps a content hash to its object key.
func StorageKey(contentHash string) string {
	return "evidence/" + contentHash
}

// PresignUpload returns the evidence reference and a presigned PUT URL for a
// blob whose SHA-256 the client has already computed.
func (s *EvidenceService) PresignUpload(ctx context.Context, contentHash string) (string, string, error) {
	if !contentHashShape.MatchString(contentHash) {
		return "", "", common.NewValidationError("contentHash", "must be a lowercase hex sha-256")
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := StorageKey(contentHash)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", err
	}

	return contentHash, req.URL, nil
}

// PresignDownload returns a presigned GET URL for a stored evidence blob.
func (s *EvidenceService) PresignDownload(ctx context.Context, contentHash string) (string, error) {
	if !contentHashShape.MatchString(contentHash) {
		return "", common.NewValidationError("contentHash", "must be a lowercase hex sha-256")
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := StorageKey(contentHash)

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
