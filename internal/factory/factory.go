package factory

import (
	"context"
	"fmt"

	"go-image-moderation/internal/storage"
	"go-image-moderation/pkg/validation"
)

// SourceType represents different image sources
type SourceType string

const (
	// HTTPSource for plain HTTP(S) downloads
	HTTPSource SourceType = "http"
	// AzureSource for Azure blob storage
	AzureSource SourceType = "azure"
)

// SourceFactory picks the fetcher responsible for an image URL
type SourceFactory struct {
	http      storage.ImageFetcher
	azure     storage.BlobStorage
	validator *validation.URLValidator
}

// NewSourceFactory creates a source factory. azure may be nil when no
// storage account is configured.
func NewSourceFactory(http storage.ImageFetcher, azure storage.BlobStorage, validator *validation.URLValidator) *SourceFactory {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &SourceFactory{
		http:      http,
		azure:     azure,
		validator: validator,
	}
}

// Resolve validates imageURL and returns the fetcher that handles it
func (f *SourceFactory) Resolve(imageURL string) (SourceType, storage.ImageFetcher, error) {
	if err := f.validator.ValidateImageURL(imageURL); err != nil {
		return "", nil, err
	}
	if f.azure != nil && f.azure.Owns(imageURL) {
		return AzureSource, f.azure, nil
	}
	if f.http != nil {
		return HTTPSource, f.http, nil
	}
	return "", nil, fmt.Errorf("%w: %s", storage.ErrUnsupportedSource, imageURL)
}

// Fetch resolves imageURL and downloads it
func (f *SourceFactory) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	_, fetcher, err := f.Resolve(imageURL)
	if err != nil {
		return nil, err
	}
	return fetcher.FetchImage(ctx, imageURL)
}
