package service

import (
	"context"

	"github.com/minio/minio-go/v7"
)

// Uploader publishes the final artifact to object storage. A nil Uploader
// disables the upload stage entirely.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName string) error
}

type minioUploader struct {
	client *minio.Client
	bucket string
}

func NewMinIOUploader(client *minio.Client, bucket string) Uploader {
	return &minioUploader{
		client: client,
		bucket: bucket,
	}
}

func (u *minioUploader) Upload(ctx context.Context, localPath, objectName string) error {
	_, err := u.client.FPutObject(ctx, u.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	return err
}
