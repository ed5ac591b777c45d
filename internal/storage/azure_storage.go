package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage downloads images from Azure blob storage
type BlobStorage interface {
	ImageFetcher
	Owns(imageURL string) bool
}

type azureStorage struct {
	client   *azblob.Client
	host     string
	maxBytes int64
}

// NewAzureStorage creates a blob fetcher for accountName using shared key auth
func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{
		client:   client,
		host:     accountName + ".blob.core.windows.net",
		maxBytes: maxBytes,
	}, nil
}

// Owns reports whether imageURL points into this storage account
func (s *azureStorage) Owns(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, s.host)
}

// FetchImage downloads the blob addressed by imageURL
func (s *azureStorage) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	containerName, blobName, err := parseBlobURL(imageURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	return readLimited(body, s.maxBytes)
}

// parseBlobURL accepts https://account.blob.core.windows.net/container/path
// and the legacy form /container?blob=path
func parseBlobURL(blobURL string) (string, string, error) {
	parts, err := azblob.ParseURL(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	containerName, blobName := parts.ContainerName, parts.BlobName
	if blobName == "" {
		u, err := url.Parse(blobURL)
		if err != nil {
			return "", "", fmt.Errorf("invalid blob URL: %w", err)
		}
		blobName = u.Query().Get("blob")
	}
	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("blob URL %q must name a container and a blob", blobURL)
	}
	return containerName, blobName, nil
}
