// Package memdriver is an in-memory driver.Driver used by tests and by
// cmd/hubd's "-driver memory" development mode. It plays the same role
// in this repo that the teacher's ais/backend "ais" backend plays for
// AIStore: a same-process stand-in for a real remote backend.
package memdriver

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

type object struct {
	data        []byte
	contentType string
	modTime     time.Time
	etag        string
}

// Driver is a concurrency-safe in-memory object store keyed by
// "storageTopLevel/path".
type Driver struct {
	readURLPrefix string
	pageSize      int

	mu      sync.RWMutex
	objects map[string]object
}

var _ driver.Driver = (*Driver)(nil)

// New creates an in-memory driver. readURLPrefix is the absolute URL
// prefix PerformWrite embeds in returned read URLs; pageSize bounds
// ListFiles/ListFilesStat page sizes (<=0 means unbounded single page).
func New(readURLPrefix string, pageSize int) *Driver {
	return &Driver{
		readURLPrefix: strings.TrimRight(readURLPrefix, "/"),
		pageSize:      pageSize,
		objects:       make(map[string]object),
	}
}

func key(storageTopLevel, p string) string {
	return path.Join(storageTopLevel, p)
}

func (d *Driver) EnsureInitialized(context.Context) error { return nil }
func (d *Driver) Dispose(context.Context) error           { return nil }

func (d *Driver) GetReadURLPrefix() string { return d.readURLPrefix }

func (d *Driver) PerformWrite(_ context.Context, in driver.WriteInput) (string, error) {
	data, err := io.ReadAll(in.Stream)
	if err != nil {
		return "", apierr.NewDriverError("PerformWrite", err)
	}
	sum := md5.Sum(data)
	k := key(in.StorageTopLevel, in.Path)
	d.mu.Lock()
	d.objects[k] = object{
		data:        data,
		contentType: in.ContentType,
		modTime:     time.Now(),
		etag:        hex.EncodeToString(sum[:]),
	}
	d.mu.Unlock()
	return d.readURLPrefix + "/" + k, nil
}

func (d *Driver) PerformDelete(_ context.Context, storageTopLevel, p string) error {
	k := key(storageTopLevel, p)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[k]; !ok {
		return &apierr.DoesNotExistError{Path: k}
	}
	delete(d.objects, k)
	return nil
}

func (d *Driver) PerformRename(_ context.Context, storageTopLevel, p, newPath string) error {
	k := key(storageTopLevel, p)
	nk := key(storageTopLevel, newPath)
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[k]
	if !ok {
		return &apierr.DoesNotExistError{Path: k}
	}
	d.objects[nk] = obj
	delete(d.objects, k)
	return nil
}

func (d *Driver) PerformRead(_ context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	k := key(storageTopLevel, p)
	d.mu.RLock()
	obj, ok := d.objects[k]
	d.mu.RUnlock()
	if !ok {
		return driver.FileInfo{Exists: false}, nil
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   obj.contentType,
		ContentLength: int64(len(obj.data)),
		ETag:          obj.etag,
		LastModified:  obj.modTime,
		ReadStream:    io.NopCloser(bytes.NewReader(obj.data)),
	}, nil
}

func (d *Driver) PerformStat(_ context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	fi, err := d.PerformRead(context.Background(), storageTopLevel, p)
	if err != nil {
		return fi, err
	}
	fi.ReadStream = nil
	return fi, nil
}

func (d *Driver) ListFiles(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	lp, err := d.ListFilesStat(ctx, pathPrefix, page)
	if err != nil {
		return driver.ListPage{}, err
	}
	return lp, nil
}

func (d *Driver) ListFilesStat(_ context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	d.mu.RLock()
	names := make([]string, 0, len(d.objects))
	for k := range d.objects {
		if strings.HasPrefix(k, pathPrefix) {
			names = append(names, k)
		}
	}
	d.mu.RUnlock()
	sort.Strings(names)

	start := 0
	if page != nil {
		n, err := strconv.Atoi(*page)
		if err != nil {
			return driver.ListPage{}, &apierr.ValidationError{Kind: apierr.BadTokenFormat, Msg: "invalid page cursor"}
		}
		start = n
	}
	if start > len(names) {
		start = len(names)
	}

	size := d.pageSize
	if size <= 0 {
		size = len(names) - start
	}
	end := start + size
	if end > len(names) {
		end = len(names)
	}

	d.mu.RLock()
	entries := make([]driver.Entry, 0, end-start)
	for _, k := range names[start:end] {
		obj := d.objects[k]
		entries = append(entries, driver.Entry{
			Name:         strings.TrimPrefix(k, pathPrefix),
			Size:         int64(len(obj.data)),
			LastModified: obj.modTime,
			ETag:         obj.etag,
		})
	}
	d.mu.RUnlock()

	var next *string
	if end < len(names) {
		s := fmt.Sprintf("%d", end)
		next = &s
	}
	return driver.ListPage{Entries: entries, Page: next}, nil
}
