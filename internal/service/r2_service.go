package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/postflow/configs"
)

var ErrForeignMediaURL = errors.New("media url is not served by this bucket")

// MediaStore holds uploaded source media until every platform has pulled it.
type MediaStore interface {
	Upload(ctx context.Context, key string, file []byte, contentType string) (string, error)
	Fetch(ctx context.Context, mediaURL string) ([]byte, error)
	Delete(ctx context.Context, mediaURL string) error
}

// objectAPI is the subset of *s3.Client used by the store.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type R2Service struct {
	config cfg.R2
	client objectAPI
	http   *http.Client
}

func NewR2Service(ctx context.Context, c cfg.Config) (*R2Service, error) {
	client, err := R2Client(ctx, c.R2)
	if err != nil {
		return nil, err
	}
	return newR2Service(c.R2, client, http.DefaultClient), nil
}

func newR2Service(c cfg.R2, client objectAPI, httpClient *http.Client) *R2Service {
	return &R2Service{config: c, client: client, http: httpClient}
}

func R2Client(ctx context.Context, c cfg.R2) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = c.Endpoint != ""
	}), nil
}

// Upload stores the object and returns its public URL.
func (r *R2Service) Upload(ctx context.Context, key string, file []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return r.PublicURL(key), nil
}

func (r *R2Service) PublicURL(key string) string {
	return strings.TrimRight(r.config.PublicURL, "/") + "/" + key
}

// Fetch reads the object behind mediaURL. URLs outside the bucket's public
// prefix are downloaded over HTTP.
func (r *R2Service) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	key, err := r.keyFor(mediaURL)
	if err != nil {
		return r.download(ctx, mediaURL)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (r *R2Service) Delete(ctx context.Context, mediaURL string) error {
	key, err := r.keyFor(mediaURL)
	if err != nil {
		return err
	}

	_, err = r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *R2Service) keyFor(mediaURL string) (string, error) {
	prefix := strings.TrimRight(r.config.PublicURL, "/") + "/"
	if r.config.PublicURL == "" || !strings.HasPrefix(mediaURL, prefix) {
		return "", ErrForeignMediaURL
	}
	key := strings.TrimPrefix(mediaURL, prefix)
	if key == "" {
		return "", ErrForeignMediaURL
	}
	return key, nil
}

func (r *R2Service) download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
