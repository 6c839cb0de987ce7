package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	shoalerr "github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// AzureBlobAPI is the subset of the Azure Blob Storage client the Azure
// Backend uses, allowing a mock client in tests.
type AzureBlobAPI interface {
	UploadBlob(ctx context.Context, containerName, blobName string, data []byte) error
	DownloadBlob(ctx context.Context, containerName, blobName string) ([]byte, error)
	DeleteBlob(ctx context.Context, containerName, blobName string) error
	BlobExists(ctx context.Context, containerName, blobName string) (bool, error)
}

type realAzureClient struct {
	client *azblob.Client
}

func newRealAzureClient(accountURL string) (*realAzureClient, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure Blob client: %w", err)
	}
	return &realAzureClient{client: client}, nil
}

func (c *realAzureClient) UploadBlob(ctx context.Context, containerName, blobName string, data []byte) error {
	_, err := c.client.UploadBuffer(ctx, containerName, blobName, data, nil)
	return err
}

func (c *realAzureClient) DownloadBlob(ctx context.Context, containerName, blobName string) ([]byte, error) {
	resp, err := c.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *realAzureClient) DeleteBlob(ctx context.Context, containerName, blobName string) error {
	_, err := c.client.DeleteBlob(ctx, containerName, blobName, nil)
	return err
}

func (c *realAzureClient) BlobExists(ctx context.Context, containerName, blobName string) (bool, error) {
	_, err := c.client.ServiceClient().NewContainerClient(containerName).NewBlobClient(blobName).GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AzureBackend implements Backend by proxying to an Azure Blob Storage
// container. Like S3/GCS, a blob has no partial-write primitive usable here
// without the block-staging API, so WriteBlock downloads, patches, and
// re-uploads the whole blob.
type AzureBackend struct {
	container string
	prefix    string
	client    AzureBlobAPI
}

// NewAzureBackend connects to the given Azure Blob container using
// DefaultAzureCredential.
func NewAzureBackend(accountURL, container, prefix string) (*AzureBackend, error) {
	client, err := newRealAzureClient(accountURL)
	if err != nil {
		return nil, err
	}
	return &AzureBackend{container: container, prefix: prefix, client: client}, nil
}

// NewAzureBackendWithClient builds an AzureBackend with a pre-configured
// client, for tests with a mock AzureBlobAPI.
func NewAzureBackendWithClient(container, prefix string, client AzureBlobAPI) *AzureBackend {
	return &AzureBackend{container: container, prefix: prefix, client: client}
}

func (b *AzureBackend) blobName(id idgen.ID) string {
	return b.prefix + id.String()
}

func (b *AzureBackend) CreateObject(ctx context.Context, id idgen.ID) error {
	return b.client.UploadBlob(ctx, b.container, b.blobName(id), []byte{})
}

func (b *AzureBackend) DeleteObject(ctx context.Context, id idgen.ID) error {
	if err := b.client.DeleteBlob(ctx, b.container, b.blobName(id)); err != nil && !isAzureNotFoundErr(err) {
		return fmt.Errorf("deleting blob for object %s: %w", id, err)
	}
	return nil
}

func (b *AzureBackend) WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error {
	current, err := b.client.DownloadBlob(ctx, b.container, b.blobName(id))
	if err != nil {
		if isAzureNotFoundErr(err) {
			return shoalerr.Wrap(shoalerr.NotFound, "object %s", id)
		}
		return fmt.Errorf("downloading blob for object %s: %w", id, err)
	}

	end := offset + int64(len(data))
	if end > int64(len(current)) {
		grown := make([]byte, end)
		copy(grown, current)
		current = grown
	}
	copy(current[offset:end], data)

	if err := b.client.UploadBlob(ctx, b.container, b.blobName(id), current); err != nil {
		return fmt.Errorf("uploading blob for object %s: %w", id, err)
	}
	return nil
}

func (b *AzureBackend) ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error) {
	data, err := b.client.DownloadBlob(ctx, b.container, b.blobName(id))
	if err != nil {
		if isAzureNotFoundErr(err) {
			return nil, shoalerr.Wrap(shoalerr.NotFound, "object %s", id)
		}
		return nil, fmt.Errorf("downloading blob for object %s: %w", id, err)
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (b *AzureBackend) Exists(ctx context.Context, id idgen.ID) (bool, error) {
	return b.client.BlobExists(ctx, b.container, b.blobName(id))
}

func (b *AzureBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.BlobExists(ctx, b.container, ".healthcheck")
	return err
}

func isAzureNotFoundErr(err error) bool {
	return bytes.Contains([]byte(err.Error()), []byte("BlobNotFound")) ||
		bytes.Contains([]byte(err.Error()), []byte("404"))
}

func isAzureNotFound(err error) bool {
	return isAzureNotFoundErr(err)
}
