package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store holds diagnostic artifacts (screenshots, page dumps) from fix
// attempts.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, prefix: "diagnostics"}, nil
}

// Put stores an artifact under the diagnostics prefix and returns its
// URL. Content type follows the extension; screenshots are PNG.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.prefix, name)

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(name, ".png"):
		contentType = "image/png"
	case strings.HasSuffix(name, ".json"):
		contentType = "application/json"
	case strings.HasSuffix(name, ".html"):
		contentType = "text/html"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}

	// URL publik (jika bucket public), kalau private harus generate presigned URL
	url := fmt.Sprintf("http://%s/%s/%s", s.client.EndpointURL().Host, s.bucketName, key)
	return url, nil
}
