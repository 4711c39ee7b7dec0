package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/google/uuid"
)

const jsonContentType = "application/json"

// Uploader is the part of *azblob.Client the archive needs.
type Uploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// ResultArchive writes fused analysis documents to a blob container.
type ResultArchive struct {
	client    Uploader
	container string
	now       func() time.Time
}

// NewAzureArchive connects to an account with a shared key.
func NewAzureArchive(accountName, accountKey, container string) (*ResultArchive, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return NewResultArchive(client, container), nil
}

// NewResultArchive wraps an existing uploader.
func NewResultArchive(client Uploader, container string) *ResultArchive {
	return &ResultArchive{client: client, container: container, now: time.Now}
}

// Archive uploads one document as analyses/YYYY/MM/DD/<requestID>.json.
func (a *ResultArchive) Archive(ctx context.Context, requestID string, document []byte) error {
	name := a.BlobName(requestID)
	contentType := jsonContentType

	_, err := a.client.UploadBuffer(ctx, a.container, name, document, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// BlobName returns the blob path used for a request.
func (a *ResultArchive) BlobName(requestID string) string {
	id := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, strings.TrimSpace(requestID))
	if id == "" {
		id = uuid.NewString()
	}
	return path.Join("analyses", a.now().UTC().Format("2006/01/02"), id+".json")
}
