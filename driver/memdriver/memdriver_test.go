package memdriver

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

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := New("https://read.example.com", 0)

	url, err := d.PerformWrite(ctx, driver.WriteInput{
		StorageTopLevel: "alice",
		Path:            "profile.json",
		Stream:          bytes.NewReader([]byte(`{"name":"alice"}`)),
		ContentType:     "application/json",
		ContentLength:   16,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://read.example.com/alice/profile.json", url)

	fi, err := d.PerformRead(ctx, "alice", "profile.json")
	require.NoError(t, err)
	require.True(t, fi.Exists)
	assert.Equal(t, "application/json", fi.ContentType)
	assert.NotEmpty(t, fi.ETag)
	body, err := io.ReadAll(fi.ReadStream)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"alice"}`, string(body))
}

func TestPerformRead_MissingIsNotAnError(t *testing.T) {
	d := New("https://read.example.com", 0)
	fi, err := d.PerformRead(context.Background(), "alice", "nope.json")
	require.NoError(t, err)
	assert.False(t, fi.Exists)
}

func TestPerformDelete_MissingReturnsDoesNotExist(t *testing.T) {
	d := New("", 0)
	err := d.PerformDelete(context.Background(), "alice", "nope.json")
	assert.True(t, apierr.IsDoesNotExist(err))
}

func TestPerformRename(t *testing.T) {
	ctx := context.Background()
	d := New("", 0)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("x"))})
	require.NoError(t, err)

	require.NoError(t, d.PerformRename(ctx, "alice", "a.txt", "b.txt"))

	fi, err := d.PerformRead(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists)

	fi, err = d.PerformRead(ctx, "alice", "b.txt")
	require.NoError(t, err)
	assert.True(t, fi.Exists)
}

func TestPerformRename_MissingSourceReturnsDoesNotExist(t *testing.T) {
	d := New("", 0)
	err := d.PerformRename(context.Background(), "alice", "missing.txt", "renamed.txt")
	assert.True(t, apierr.IsDoesNotExist(err))
}

func TestPerformStat_HasNoReadStream(t *testing.T) {
	ctx := context.Background()
	d := New("", 0)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("hello"))})
	require.NoError(t, err)

	fi, err := d.PerformStat(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.Nil(t, fi.ReadStream)
	assert.EqualValues(t, 5, fi.ContentLength)
}

func TestListFiles_Pagination(t *testing.T) {
	ctx := context.Background()
	d := New("", 2)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: name, Stream: bytes.NewReader([]byte("x"))})
		require.NoError(t, err)
	}

	var all []string
	var page *string
	for {
		lp, err := d.ListFiles(ctx, "alice/", page)
		require.NoError(t, err)
		for _, e := range lp.Entries {
			all = append(all, e.Name)
		}
		if lp.Page == nil {
			break
		}
		page = lp.Page
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}, all)
}

func TestListFilesStat_PopulatesMetadata(t *testing.T) {
	ctx := context.Background()
	d := New("", 0)
	_, err := d.PerformWrite(ctx, driver.WriteInput{StorageTopLevel: "alice", Path: "a.txt", Stream: bytes.NewReader([]byte("hello"))})
	require.NoError(t, err)

	lp, err := d.ListFilesStat(ctx, "alice/", nil)
	require.NoError(t, err)
	require.Len(t, lp.Entries, 1)
	assert.Equal(t, "a.txt", lp.Entries[0].Name)
	assert.EqualValues(t, 5, lp.Entries[0].Size)
	assert.NotEmpty(t, lp.Entries[0].ETag)
}
