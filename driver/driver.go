// Package driver defines the uniform contract every storage backend
// (disk, S3, Azure, GCS, in-memory) must satisfy. The hub and the read
// gateway talk only to this interface; nothing above this package knows
// which backend is in play.
package driver

import (
	"context"
	"io"
	"time"
)

// WriteInput describes a single object write. Stream is consumed to
// end-of-input by performWrite; callers do not read from it afterward.
type WriteInput struct {
	StorageTopLevel string // the principal's top-level prefix/bucket
	Path            string // relative path beneath StorageTopLevel
	Stream          io.Reader
	ContentType     string
	// ContentLength is the declared size, or -1 if unknown.
	ContentLength int64
}

// FileInfo is the result of a read or stat call.
type FileInfo struct {
	Exists        bool
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time
	// ReadStream is non-nil only for performRead results and must be
	// consumed or closed by the caller.
	ReadStream io.ReadCloser
}

// Entry is one item in a ListPage. A zero-value Entry (Name == "")
// inside ListPage.Entries is the "null sentinel": this slot is empty
// because every candidate in this page was filtered out by the caller
// (e.g. archival-history filtering), but Page may still be non-empty
// and must be followed.
type Entry struct {
	Name         string
	Size         int64
	LastModified time.Time
	ETag         string
}

// IsNull reports whether e is the null-sentinel entry.
func (e Entry) IsNull() bool { return e.Name == "" }

// ListPage is one page of a listing. Page is an opaque, driver-specific
// cursor; callers pass it back verbatim to request the next page. A nil
// Page means there are no further pages.
type ListPage struct {
	Entries []Entry
	Page    *string
}

// Driver is the uniform storage contract. Implementations must be safe
// for concurrent use by multiple goroutines: a single Driver instance is
// shared across every in-flight request.
type Driver interface {
	// EnsureInitialized performs any one-time setup (bucket creation,
	// auth handshake) before the driver serves traffic.
	EnsureInitialized(ctx context.Context) error
	// Dispose releases resources held by the driver (connection pools,
	// file handles). Safe to call once during shutdown.
	Dispose(ctx context.Context) error

	// PerformWrite streams in.Stream to in.Path and returns the
	// canonical read URL in this driver's own URL-prefix form. On error,
	// implementations must not leave a partially-readable object visible
	// at in.Path for subsequent reads of that exact key, on a best-effort
	// basis — backends with no atomic-rename primitive may expose
	// ephemeral partials; callers must not rely on their absence.
	PerformWrite(ctx context.Context, in WriteInput) (readURL string, err error)

	// PerformDelete removes the object at path. Returns
	// *apierr.DoesNotExistError if absent.
	PerformDelete(ctx context.Context, storageTopLevel, path string) error

	// PerformRename moves path to newPath. Returns
	// *apierr.DoesNotExistError if the source is absent. Overwriting an
	// existing object at newPath is permitted.
	PerformRename(ctx context.Context, storageTopLevel, path, newPath string) error

	// PerformRead opens path for reading. FileInfo.Exists is false (with
	// a nil error) when the object is absent; the stream, if any, must be
	// consumed or closed by the caller.
	PerformRead(ctx context.Context, storageTopLevel, path string) (FileInfo, error)

	// PerformStat is PerformRead without opening a byte stream.
	PerformStat(ctx context.Context, storageTopLevel, path string) (FileInfo, error)

	// ListFiles lists object names under pathPrefix in lexicographic
	// order, page size driver-defined (bounded by the configured page
	// size where the backend allows it).
	ListFiles(ctx context.Context, pathPrefix string, page *string) (ListPage, error)

	// ListFilesStat is ListFiles with per-entry metadata populated.
	ListFilesStat(ctx context.Context, pathPrefix string, page *string) (ListPage, error)

	// GetReadURLPrefix returns the absolute URL prefix this driver
	// naturally emits from PerformWrite. The hub layer rewrites this to
	// its own public read-URL prefix when the two differ.
	GetReadURLPrefix() string
}
