package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/transfer"
)

type MediaService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (*transfer.UploadResponse, error)
	Remove(ctx context.Context, publicID string) error
}

type mediaService struct {
	cfg config.Config
	r2  *R2Service
}

func NewMediaService(cfg config.Config, r2 *R2Service) MediaService {
	return &mediaService{
		cfg: cfg,
		r2:  r2,
	}
}

// Upload sniffs the real content type from the file bytes, rejects anything
// that is not a supported image or video, and stores it under a random key.
func (s *mediaService) Upload(ctx context.Context, file *multipart.FileHeader) (*transfer.UploadResponse, error) {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	fileContent, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return nil, fmt.Errorf("unsupported file type: %w", err)
	}
	if _, ok := allowedTypes[fileType.Extension]; !ok {
		return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		log.Println(err.Error())
		return nil, err
	}

	// Keep the extension in the key so downstream platforms can tell videos
	// from images by URL alone.
	key := fmt.Sprintf("%s.%s", id, fileType.Extension)

	if err := s.r2.UploadToR2(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	return &transfer.UploadResponse{
		URL:      fmt.Sprintf("%s/%s", s.cfg.R2.PublicURL, key),
		PublicID: key,
	}, nil
}

// Remove deletes a previously uploaded object by its public id (the object
// key returned from Upload).
func (s *mediaService) Remove(ctx context.Context, publicID string) error {
	if publicID == "" {
		return fmt.Errorf("missing file key")
	}
	return s.r2.DeleteFromR2(ctx, publicID)
}
