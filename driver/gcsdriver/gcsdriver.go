// Package gcsdriver implements driver.Driver on top of Google Cloud
// Storage via cloud.google.com/go/storage, the teacher's own direct
// dependency.
package gcsdriver

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

// Config configures the GCS driver.
type Config struct {
	Bucket           string
	CredentialsFile  string // empty uses ambient application-default credentials
	ReadURLPrefix    string
	PageSize         int
}

// Driver talks to a single GCS bucket.
type Driver struct {
	cfg    Config
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ driver.Driver = (*Driver)(nil)

func New(ctx context.Context, cfg Config) (*Driver, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apierr.NewDriverError("storage.NewClient", err)
	}
	return &Driver{
		cfg:    cfg,
		client: client,
		bucket: client.Bucket(cfg.Bucket),
	}, nil
}

func (d *Driver) EnsureInitialized(ctx context.Context) error {
	_, err := d.bucket.Attrs(ctx)
	if err != nil {
		return apierr.NewDriverError("bucket.Attrs", err)
	}
	return nil
}

func (d *Driver) Dispose(context.Context) error { return d.client.Close() }

func (d *Driver) GetReadURLPrefix() string {
	if d.cfg.ReadURLPrefix != "" {
		return strings.TrimRight(d.cfg.ReadURLPrefix, "/")
	}
	return "https://storage.googleapis.com/" + d.cfg.Bucket
}

func objName(storageTopLevel, p string) string {
	return strings.TrimLeft(storageTopLevel+"/"+p, "/")
}

func (d *Driver) PerformWrite(ctx context.Context, in driver.WriteInput) (string, error) {
	name := objName(in.StorageTopLevel, in.Path)
	obj := d.bucket.Object(name)
	w := obj.NewWriter(ctx)
	w.ContentType = in.ContentType
	if _, err := io.Copy(w, in.Stream); err != nil {
		w.Close()
		return "", apierr.NewDriverError("object.Write", err)
	}
	if err := w.Close(); err != nil {
		return "", apierr.NewDriverError("writer.Close", err)
	}
	return d.GetReadURLPrefix() + "/" + name, nil
}

func (d *Driver) PerformDelete(ctx context.Context, storageTopLevel, p string) error {
	name := objName(storageTopLevel, p)
	if err := d.bucket.Object(name).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return &apierr.DoesNotExistError{Path: name}
		}
		return apierr.NewDriverError("object.Delete", err)
	}
	return nil
}

func (d *Driver) PerformRename(ctx context.Context, storageTopLevel, p, newPath string) error {
	srcName := objName(storageTopLevel, p)
	dstName := objName(storageTopLevel, newPath)
	src := d.bucket.Object(srcName)
	dst := d.bucket.Object(dstName)
	if _, err := src.Attrs(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return &apierr.DoesNotExistError{Path: srcName}
		}
		return apierr.NewDriverError("src.Attrs", err)
	}
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return apierr.NewDriverError("object.Copy", err)
	}
	if err := src.Delete(ctx); err != nil {
		return apierr.NewDriverError("src.Delete", err)
	}
	return nil
}

func (d *Driver) PerformRead(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	name := objName(storageTopLevel, p)
	obj := d.bucket.Object(name)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("object.Attrs", err)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return driver.FileInfo{}, apierr.NewDriverError("object.NewReader", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   attrs.ContentType,
		ContentLength: attrs.Size,
		ETag:          attrs.Etag,
		LastModified:  attrs.Updated,
		ReadStream:    r,
	}, nil
}

func (d *Driver) PerformStat(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	name := objName(storageTopLevel, p)
	attrs, err := d.bucket.Object(name).Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("object.Attrs", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   attrs.ContentType,
		ContentLength: attrs.Size,
		ETag:          attrs.Etag,
		LastModified:  attrs.Updated,
	}, nil
}

func (d *Driver) ListFiles(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, false)
}

func (d *Driver) ListFilesStat(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, true)
}

func (d *Driver) list(ctx context.Context, pathPrefix string, page *string, withStat bool) (driver.ListPage, error) {
	it := d.bucket.Objects(ctx, &storage.Query{Prefix: pathPrefix})
	pager := iterator.NewPager(it, d.cfg.PageSize, derefOrEmpty(page))
	var attrsList []*storage.ObjectAttrs
	next, err := pager.NextPage(&attrsList)
	if err != nil {
		return driver.ListPage{}, apierr.NewDriverError("pager.NextPage", err)
	}
	entries := make([]driver.Entry, 0, len(attrsList))
	for _, a := range attrsList {
		e := driver.Entry{Name: strings.TrimPrefix(a.Name, pathPrefix)}
		if withStat {
			e.Size = a.Size
			e.LastModified = a.Updated
			e.ETag = a.Etag
		}
		entries = append(entries, e)
	}
	var nextPage *string
	if next != "" {
		nextPage = &next
	}
	return driver.ListPage{Entries: entries, Page: nextPage}, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
