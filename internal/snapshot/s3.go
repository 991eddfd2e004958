package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3API is the part of the S3 client the backend needs.
type S3API interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Backend stores each collection as the object <prefix><name>.json.
type S3Backend struct {
	s3     S3API
	bucket string
	prefix string
}

func NewS3Backend(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{s3: client, bucket: bucket, prefix: prefix}
}

// S3Options configure a client built by NewS3Client.
type S3Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// NewS3Client builds a client from the default credential chain.
// Endpoint is only needed for S3-compatible stores such as MinIO.
func NewS3Client(o S3Options) (*s3.S3, error) {
	cfg := aws.Config{
		Region:           aws.String(o.Region),
		S3ForcePathStyle: aws.Bool(o.ForcePathStyle),
	}
	if o.Endpoint != "" {
		cfg.Endpoint = aws.String(o.Endpoint)
	}
	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

func (b *S3Backend) key(name string) *string {
	return aws.String(b.prefix + name + ".json")
}

func (b *S3Backend) Save(ctx context.Context, name string, data []byte) error {
	_, err := b.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         b.key(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (b *S3Backend) Load(ctx context.Context, name string) ([]byte, bool, error) {
	out, err := b.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    b.key(name),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
