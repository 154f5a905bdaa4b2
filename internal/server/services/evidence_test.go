package services

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudwatch/fraudwatch/internal/common"
)

const testContentHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func stubPresignSeams(t *testing.T, putURL, getURL string) (puts, gets *[]string) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPresign := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		newS3PresignClient = origPresign
		presignPutObject = origPut
		presignGetObject = origGet
	})

	var putKeys, getKeys []string

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return nil
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return nil
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		putKeys = append(putKeys, *in.Bucket+"/"+*in.Key)
		return &v4.PresignedHTTPRequest{URL: putURL}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		getKeys = append(getKeys, *in.Bucket+"/"+*in.Key)
		return &v4.PresignedHTTPRequest{URL: getURL}, nil
	}

	return &putKeys, &getKeys
}

func TestPresignRejectsMalformedHash(t *testing.T) {
	svc := NewEvidenceService(testConfig())

	for _, h := range []string{"", "short", strings.ToUpper(testContentHash), testContentHash + "00"} {
		_, _, err := svc.PresignUpload(context.Background(), h)
		var ve *common.ValidationError
		require.ErrorAs(t, err, &ve, "hash %q", h)
		assert.Equal(t, "contentHash", ve.Field)

		_, err = svc.PresignDownload(context.Background(), h)
		assert.ErrorAs(t, err, &ve, "hash %q", h)
	}
}

func TestPresignUpload(t *testing.T) {
	puts, _ := stubPresignSeams(t, "https://evidence.example/put", "")
	svc := NewEvidenceService(testConfig())

	ref, url, err := svc.PresignUpload(context.Background(), testContentHash)
	require.NoError(t, err)

	assert.Equal(t, testContentHash, ref)
	assert.Equal(t, "https://evidence.example/put", url)
	require.Len(t, *puts, 1)
	assert.Equal(t, "evidence/"+StorageKey(testContentHash), (*puts)[0])
}

func TestPresignDownload(t *testing.T) {
	_, gets := stubPresignSeams(t, "", "https://evidence.example/get")
	svc := NewEvidenceService(testConfig())

	url, err := svc.PresignDownload(context.Background(), testContentHash)
	require.NoError(t, err)

	assert.Equal(t, "https://evidence.example/get", url)
	require.Len(t, *gets, 1)
	assert.Equal(t, "evidence/"+StorageKey(testContentHash), (*gets)[0])
}

func TestStorageKeyIsContentAddressed(t *testing.T) {
	assert.Equal(t, "evidence/"+testContentHash, StorageKey(testContentHash))
}
