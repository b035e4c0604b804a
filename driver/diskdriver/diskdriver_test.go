package diskdriver

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d := New(t.TempDir(), "https://read.example.com", 0)
	require.NoError(t, d.EnsureInitialized(context.Background()))
	return d
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)

	url, err := d.PerformWrite(ctx, driver.WriteInput{
		StorageTopLevel: "alice",
		Path:            "a.txt",
		Stream:          bytes.NewReader([]byte("hello")),
		ContentType:     "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://read.example.com/alice/a.txt", url)

	fi, err := d.PerformRead(ctx, "alice", "a.txt")
	require.NoError(t, err)
	require.True(t, fi.Exists)
	assert.Equal(t, "text/plain", fi.ContentType)
	body, err := io.ReadAll(fi.ReadStream)
	require.NoError(t, err)
	fi.ReadStream.Close()
	assert.Equal(t, "hello", string(body))
}

func TestPerformRead_MissingIsNotAnError(t *testing.T) {
	d := newTestDriver(t)
	fi, err := d.PerformRead(context.Background(), "alice", "nope.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists)
}

func TestPerformDelete_RemovesObjectAndSidecar(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("x")), ContentType: "text/plain"})
	require.NoError(t, err)

	require.NoError(t, d.PerformDelete(ctx, "alice", "a.txt"))

	fi, err := d.PerformRead(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists)
}

func TestPerformDelete_MissingReturnsDoesNotExist(t *testing.T) {
	d := newTestDriver(t)
	err := d.PerformDelete(context.Background(), "alice", "nope.txt")
	assert.True(t, apierr.IsDoesNotExist(err))
}

func TestPerformRename(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("x"))})
	require.NoError(t, err)

	require.NoError(t, d.PerformRename(ctx, "alice", "a.txt", "sub/b.txt"))

	fi, err := d.PerformRead(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists)

	fi, err = d.PerformRead(ctx, "alice", "sub/b.txt")
	require.NoError(t, err)
	require.True(t, fi.Exists)
	fi.ReadStream.Close()
}

func TestPerformRename_MissingSourceReturnsDoesNotExist(t *testing.T) {
	d := newTestDriver(t)
	err := d.PerformRename(context.Background(), "alice", "missing.txt", "renamed.txt")
	assert.True(t, apierr.IsDoesNotExist(err))
}

func TestListFiles_Pagination(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir(), "", 2)
	require.NoError(t, d.EnsureInitialized(ctx))
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: name, Stream: bytes.NewReader([]byte("x"))})
		require.NoError(t, err)
	}

	var all []string
	var page *string
	for {
		lp, err := d.ListFiles(ctx, "alice", page)
		require.NoError(t, err)
		for _, e := range lp.Entries {
			all = append(all, e.Name)
		}
		if lp.Page == nil {
			break
		}
		page = lp.Page
	}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.txt"}, all)
}

func TestListFilesStat_PopulatesSize(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("hello"))})
	require.NoError(t, err)

	lp, err := d.ListFilesStat(ctx, "alice", nil)
	require.NoError(t, err)
	require.Len(t, lp.Entries, 1)
	assert.Equal(t, "a.txt", lp.Entries[0].Name)
	assert.EqualValues(t, 5, lp.Entries[0].Size)
}
