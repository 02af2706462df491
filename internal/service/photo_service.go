package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ErrUploadsDisabled    = errors.New("photo uploads are not configured")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	photoExtByContentType = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
	}
)

const uploadURLTTL = 5 * time.Minute

// PutPresigner is the part of s3.PresignClient the photo service uses.
type PutPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Presigner builds a presign client from the default AWS credential chain.
func NewS3Presigner(ctx context.Context, region string) (*s3.PresignClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewPresignClient(s3.NewFromConfig(cfg)), nil
}

type PhotoService struct {
	presigner PutPresigner
	bucket    string
	region    string
}

// NewPhotoService returns a service that refuses uploads when presigner is nil.
func NewPhotoService(presigner PutPresigner, bucket, region string) *PhotoService {
	return &PhotoService{presigner: presigner, bucket: bucket, region: region}
}

type PhotoUploadInput struct {
	ContentType string `json:"content_type"`
}

type PhotoUpload struct {
	UploadURL string    `json:"upload_url"`
	PhotoURL  string    `json:"photo_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadURL returns a presigned PUT URL for a new photo owned by userID. The client
// uploads there and then stores PhotoURL on its profile or on a connection.
func (s *PhotoService) UploadURL(ctx context.Context, userID uuid.UUID, input PhotoUploadInput) (*PhotoUpload, error) {
	if s.presigner == nil || s.bucket == "" {
		return nil, ErrUploadsDisabled
	}
	ext, ok := photoExtByContentType[input.ContentType]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	key := fmt.Sprintf("photos/%s/%s.%s", userID, ulid.Make(), ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(input.ContentType),
	}, s3.WithPresignExpires(uploadURLTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}

	return &PhotoUpload{
		UploadURL: req.URL,
		PhotoURL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
		ExpiresAt: time.Now().Add(uploadURLTTL),
	}, nil
}
