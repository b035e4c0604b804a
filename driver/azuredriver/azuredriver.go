// Package azuredriver implements driver.Driver on top of Azure Blob
// Storage via github.com/Azure/azure-storage-blob-go, the teacher's own
// direct dependency.
package azuredriver

import (
	"context"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

// Config configures the Azure driver.
type Config struct {
	AccountName   string
	AccountKey    string
	Container     string
	ReadURLPrefix string
	PageSize      int
}

// Driver talks to a single Azure Blob container.
type Driver struct {
	cfg       Config
	container azblob.ContainerURL
}

var _ driver.Driver = (*Driver)(nil)

func New(cfg Config) (*Driver, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apierr.NewDriverError("azblob.NewSharedKeyCredential", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	base, err := url.Parse("https://" + cfg.AccountName + ".blob.core.windows.net/" + cfg.Container)
	if err != nil {
		return nil, apierr.NewDriverError("url.Parse", err)
	}
	return &Driver{
		cfg:       cfg,
		container: azblob.NewContainerURL(*base, pipeline),
	}, nil
}

func (d *Driver) EnsureInitialized(ctx context.Context) error {
	_, err := d.container.Create(ctx, azblob.Metadata{}, azblob.PublicAccessNone)
	if err != nil {
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeContainerAlreadyExists {
			return nil
		}
		return apierr.NewDriverError("container.Create", err)
	}
	return nil
}

func (d *Driver) Dispose(context.Context) error { return nil }

func (d *Driver) GetReadURLPrefix() string {
	if d.cfg.ReadURLPrefix != "" {
		return strings.TrimRight(d.cfg.ReadURLPrefix, "/")
	}
	return d.container.URL().String()
}

func blobKey(storageTopLevel, p string) string {
	return strings.TrimLeft(storageTopLevel+"/"+p, "/")
}

func isNotFound(err error) bool {
	stgErr, ok := err.(azblob.StorageError)
	return ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound
}

func (d *Driver) PerformWrite(ctx context.Context, in driver.WriteInput) (string, error) {
	key := blobKey(in.StorageTopLevel, in.Path)
	blob := d.container.NewBlockBlobURL(key)
	_, err := azblob.UploadStreamToBlockBlob(ctx, in.Stream, blob, azblob.UploadStreamToBlockBlobOptions{
		BufferSize: 4 * 1024 * 1024,
		MaxBuffers: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: in.ContentType,
		},
	})
	if err != nil {
		return "", apierr.NewDriverError("azblob.Upload", err)
	}
	return d.GetReadURLPrefix() + "/" + key, nil
}

func (d *Driver) PerformDelete(ctx context.Context, storageTopLevel, p string) error {
	key := blobKey(storageTopLevel, p)
	blob := d.container.NewBlobURL(key)
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		if isNotFound(err) {
			return &apierr.DoesNotExistError{Path: key}
		}
		return apierr.NewDriverError("blob.Delete", err)
	}
	return nil
}

func (d *Driver) PerformRename(ctx context.Context, storageTopLevel, p, newPath string) error {
	srcKey := blobKey(storageTopLevel, p)
	dstKey := blobKey(storageTopLevel, newPath)
	src := d.container.NewBlobURL(srcKey)
	dst := d.container.NewBlobURL(dstKey)

	if _, err := src.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{}); err != nil {
		if isNotFound(err) {
			return &apierr.DoesNotExistError{Path: srcKey}
		}
		return apierr.NewDriverError("src.GetProperties", err)
	}
	if _, err := dst.StartCopyFromURL(ctx, src.URL(), azblob.Metadata{}, azblob.ModifiedAccessConditions{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil); err != nil {
		return apierr.NewDriverError("dst.StartCopyFromURL", err)
	}
	if _, err := src.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{}); err != nil {
		return apierr.NewDriverError("src.Delete", err)
	}
	return nil
}

func (d *Driver) PerformRead(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	key := blobKey(storageTopLevel, p)
	blob := d.container.NewBlobURL(key)
	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isNotFound(err) {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("blob.Download", err)
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	return driver.FileInfo{
		Exists:        true,
		ContentType:   resp.ContentType(),
		ContentLength: resp.ContentLength(),
		ETag:          strings.Trim(string(resp.ETag()), `"`),
		LastModified:  resp.LastModified(),
		ReadStream:    body,
	}, nil
}

func (d *Driver) PerformStat(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	key := blobKey(storageTopLevel, p)
	blob := d.container.NewBlobURL(key)
	resp, err := blob.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isNotFound(err) {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("blob.GetProperties", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   resp.ContentType(),
		ContentLength: resp.ContentLength(),
		ETag:          strings.Trim(string(resp.ETag()), `"`),
		LastModified:  resp.LastModified(),
	}, nil
}

func (d *Driver) ListFiles(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, false)
}

func (d *Driver) ListFilesStat(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, true)
}

func (d *Driver) list(ctx context.Context, pathPrefix string, page *string, withStat bool) (driver.ListPage, error) {
	marker := azblob.Marker{}
	if page != nil {
		marker = azblob.Marker{Val: page}
	}
	opts := azblob.ListBlobsSegmentOptions{
		Prefix:     pathPrefix,
		MaxResults: int32(d.cfg.PageSize),
	}
	resp, err := d.container.ListBlobsFlatSegment(ctx, marker, opts)
	if err != nil {
		return driver.ListPage{}, apierr.NewDriverError("container.ListBlobsFlatSegment", err)
	}
	entries := make([]driver.Entry, 0, len(resp.Segment.BlobItems))
	for _, item := range resp.Segment.BlobItems {
		e := driver.Entry{Name: strings.TrimPrefix(item.Name, pathPrefix)}
		if withStat {
			if item.Properties.ContentLength != nil {
				e.Size = *item.Properties.ContentLength
			}
			e.LastModified = item.Properties.LastModified
			if item.Properties.Etag != "" {
				e.ETag = strings.Trim(string(item.Properties.Etag), `"`)
			}
		}
		entries = append(entries, e)
	}
	var next *string
	if resp.NextMarker.Val != nil && *resp.NextMarker.Val != "" {
		next = resp.NextMarker.Val
	}
	return driver.ListPage{Entries: entries, Page: next}, nil
}
