package helpers

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

type S3File struct {
	Bucket      string
	Key         string
	ContentType string
	Body        *bytes.Buffer
}

// AddFileToS3 uploads file and returns its location.
func AddFileToS3(ctx context.Context, sess *session.Session, file S3File) (string, error) {
	if sess == nil {
		return "", errors.New("nil s3 session")
	}

	uploader := s3manager.NewUploader(sess)
	out, err := uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(file.Bucket),
		Key:         aws.String(file.Key),
		ContentType: aws.String(file.ContentType),
		Body:        bytes.NewReader(file.Body.Bytes()),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed uploading %s", file.Key)
	}

	return out.Location, nil
}

// PresignS3File returns a temporary GET URL for key.
func PresignS3File(sess *session.Session, bucket, key string, ttl time.Duration) (string, error) {
	if sess == nil {
		return "", errors.New("nil s3 session")
	}

	req, _ := s3.New(sess).GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", errors.Wrapf(err, "failed presigning %s", key)
	}

	return url, nil
}
