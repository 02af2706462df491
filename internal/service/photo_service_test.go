package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
)

type fakePresigner struct {
	input *s3.PutObjectInput
	err   error
}

func (p *fakePresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.input = params
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *params.Key, Method: "PUT"}, nil
}

func TestPhotoUploadURL(t *testing.T) {
	presigner := &fakePresigner{}
	photos := NewPhotoService(presigner, "orbit-photos", "eu-central-1")
	userID := uuid.New()

	upload, err := photos.UploadURL(context.Background(), userID, PhotoUploadInput{ContentType: "image/png"})
	assert.Equal(t, err, nil)

	key := *presigner.input.Key
	assert.Equal(t, strings.HasPrefix(key, "photos/"+userID.String()+"/"), true)
	assert.Equal(t, strings.HasSuffix(key, ".png"), true)
	assert.Equal(t, *presigner.input.Bucket, "orbit-photos")
	assert.Equal(t, *presigner.input.ContentType, "image/png")
	assert.Equal(t, upload.UploadURL, "https://signed.example/"+key)
	assert.Equal(t, upload.PhotoURL, "https://orbit-photos.s3.eu-central-1.amazonaws.com/"+key)
}

func TestPhotoUploadRejects(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	_, err := NewPhotoService(nil, "", "").UploadURL(ctx, userID, PhotoUploadInput{ContentType: "image/png"})
	assert.Equal(t, errors.Is(err, ErrUploadsDisabled), true)

	photos := NewPhotoService(&fakePresigner{}, "orbit-photos", "eu-central-1")
	_, err = photos.UploadURL(ctx, userID, PhotoUploadInput{ContentType: "image/gif"})
	assert.Equal(t, errors.Is(err, ErrUnsupportedImage), true)

	failing := NewPhotoService(&fakePresigner{err: errors.New("no credentials")}, "orbit-photos", "eu-central-1")
	_, err = failing.UploadURL(ctx, userID, PhotoUploadInput{ContentType: "image/jpeg"})
	assert.NotEqual(t, err, nil)
}
