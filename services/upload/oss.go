package uploadsvc

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
)

const cacheForever = "public, max-age=31536000, immutable"

// ossBackend stores files in an Aliyun OSS bucket.
type ossBackend struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	baseURL    string
}

func newOSSBackend(conf core.StorageConfig) (*ossBackend, error) {
	if conf.OSSEndpoint == "" || conf.OSSAccessKey == "" || conf.OSSSecretKey == "" || conf.OSSBucket == "" {
		return nil, errors.New("oss storage needs an endpoint, an access key, a secret key and a bucket")
	}
	client, err := oss.New(conf.OSSEndpoint, conf.OSSAccessKey, conf.OSSSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating oss client")
	}
	bucket, err := client.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "opening oss bucket")
	}
	return &ossBackend{
		bucket:     bucket,
		endpoint:   conf.OSSEndpoint,
		bucketName: conf.OSSBucket,
		baseURL:    conf.PublicBaseURL,
	}, nil
}

func (b *ossBackend) put(ctx context.Context, key, contentType string, content []byte) error {
	err := b.bucket.PutObject(
		key, bytes.NewReader(content),
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl(cacheForever),
	)
	return errors.Wrap(err, "putting oss object")
}

func (b *ossBackend) remove(ctx context.Context, key string) error {
	if err := b.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 404 {
			return nil
		}
		return errors.Wrap(err, "deleting oss object")
	}
	return nil
}

func (b *ossBackend) url(key string) string {
	if b.baseURL != "" {
		return b.baseURL + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(b.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", b.bucketName, end, key)
}
