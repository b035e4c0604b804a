// Package diskdriver implements driver.Driver on top of the local
// filesystem. It uses only the standard library: the filesystem already
// gives us atomic rename and a stable directory layout, so there is no
// third-party client to wire here (see DESIGN.md).
package diskdriver

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

// Driver stores objects under Root/<storageTopLevel>/<path>.
type Driver struct {
	root          string
	readURLPrefix string
	pageSize      int
}

var _ driver.Driver = (*Driver)(nil)

func New(root, readURLPrefix string, pageSize int) *Driver {
	return &Driver{
		root:          root,
		readURLPrefix: strings.TrimRight(readURLPrefix, "/"),
		pageSize:      pageSize,
	}
}

func (d *Driver) EnsureInitialized(context.Context) error {
	return os.MkdirAll(d.root, 0o755)
}

func (d *Driver) Dispose(context.Context) error { return nil }

func (d *Driver) GetReadURLPrefix() string { return d.readURLPrefix }

func (d *Driver) fullPath(storageTopLevel, p string) string {
	return filepath.Join(d.root, storageTopLevel, filepath.FromSlash(p))
}

// PerformWrite writes to a randomized temp file in the same directory,
// then renames into place — a single atomic rename means a crash
// mid-write never leaves a corrupt object visible at path.
func (d *Driver) PerformWrite(_ context.Context, in driver.WriteInput) (string, error) {
	dest := d.fullPath(in.StorageTopLevel, in.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", apierr.NewDriverError("PerformWrite.mkdir", err)
	}
	tmp := dest + fmt.Sprintf(".tmp-%d-%d", time.Now().UnixNano(), rand.Int63())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", apierr.NewDriverError("PerformWrite.create", err)
	}
	if _, err := io.Copy(f, in.Stream); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", apierr.NewDriverError("PerformWrite.copy", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", apierr.NewDriverError("PerformWrite.close", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", apierr.NewDriverError("PerformWrite.rename", err)
	}
	if in.ContentType != "" {
		_ = os.WriteFile(dest+".contenttype", []byte(in.ContentType), 0o644)
	}
	key := filepath.ToSlash(filepath.Join(in.StorageTopLevel, in.Path))
	return d.readURLPrefix + "/" + key, nil
}

func (d *Driver) PerformDelete(_ context.Context, storageTopLevel, p string) error {
	full := d.fullPath(storageTopLevel, p)
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return &apierr.DoesNotExistError{Path: p}
		}
		return apierr.NewDriverError("PerformDelete", err)
	}
	os.Remove(full + ".contenttype")
	return nil
}

func (d *Driver) PerformRename(_ context.Context, storageTopLevel, p, newPath string) error {
	src := d.fullPath(storageTopLevel, p)
	dst := d.fullPath(storageTopLevel, newPath)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return &apierr.DoesNotExistError{Path: p}
		}
		return apierr.NewDriverError("PerformRename.stat", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apierr.NewDriverError("PerformRename.mkdir", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return apierr.NewDriverError("PerformRename", err)
	}
	os.Rename(src+".contenttype", dst+".contenttype")
	return nil
}

func (d *Driver) contentType(full string) string {
	b, err := os.ReadFile(full + ".contenttype")
	if err != nil {
		return "application/octet-stream"
	}
	return string(b)
}

func (d *Driver) PerformRead(_ context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	full := d.fullPath(storageTopLevel, p)
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("PerformRead", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return driver.FileInfo{}, apierr.NewDriverError("PerformRead.stat", err)
	}
	etag, err := fileMD5(full)
	if err != nil {
		f.Close()
		return driver.FileInfo{}, apierr.NewDriverError("PerformRead.etag", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   d.contentType(full),
		ContentLength: info.Size(),
		ETag:          etag,
		LastModified:  info.ModTime(),
		ReadStream:    f,
	}, nil
}

func (d *Driver) PerformStat(_ context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	full := d.fullPath(storageTopLevel, p)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("PerformStat", err)
	}
	etag, err := fileMD5(full)
	if err != nil {
		return driver.FileInfo{}, apierr.NewDriverError("PerformStat.etag", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   d.contentType(full),
		ContentLength: info.Size(),
		ETag:          etag,
		LastModified:  info.ModTime(),
	}, nil
}

func fileMD5(full string) (string, error) {
	f, err := os.Open(full)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (d *Driver) ListFiles(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, false)
}

func (d *Driver) ListFilesStat(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, true)
}

func (d *Driver) list(_ context.Context, pathPrefix string, page *string, withStat bool) (driver.ListPage, error) {
	base := filepath.Join(d.root, filepath.FromSlash(pathPrefix))
	var names []string
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".contenttype") || strings.Contains(filepath.Base(p), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return driver.ListPage{}, apierr.NewDriverError("ListFiles.walk", err)
	}
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

	entries := make([]driver.Entry, 0, end-start)
	for _, rel := range names[start:end] {
		e := driver.Entry{Name: rel}
		if withStat {
			full := filepath.Join(base, filepath.FromSlash(rel))
			if info, err := os.Stat(full); err == nil {
				e.Size = info.Size()
				e.LastModified = info.ModTime()
				if etag, err := fileMD5(full); err == nil {
					e.ETag = etag
				}
			}
		}
		entries = append(entries, e)
	}

	var next *string
	if end < len(names) {
		s := strconv.Itoa(end)
		next = &s
	}
	return driver.ListPage{Entries: entries, Page: next}, nil
}
