package upload

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/driver/memdriver"
	"github.com/zaharov-labs/stackhub/hubtoken"
	"github.com/zaharov-labs/stackhub/proofchecker"
)

func newTestPipeline(maxSize int64) (*Pipeline, driver.Driver) {
	drv := memdriver.New("https://storage.example.com", 0)
	return &Pipeline{
		Driver:                 drv,
		ProofChecker:           proofchecker.AllowAll{},
		MaxFileUploadSizeBytes: maxSize,
		ReadURLPrefix:          "https://read.example.com",
	}, drv
}

func TestStore_HappyPath(t *testing.T) {
	p, _ := newTestPipeline(1024)
	url, err := p.Store(context.Background(), Request{
		Principal:     "alice",
		Path:          "profile.json",
		ContentType:   "application/json",
		ContentLength: 4,
		Body:          bytes.NewReader([]byte("true")),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "https://read.example.com/alice/profile.json", url)
}

func TestStore_RejectsDeclaredLengthOverLimit(t *testing.T) {
	p, _ := newTestPipeline(10)
	_, err := p.Store(context.Background(), Request{
		Principal:     "alice",
		Path:          "big.bin",
		ContentLength: 1000,
		Body:          bytes.NewReader(bytes.Repeat([]byte("x"), 1000)),
	}, false)
	require.Error(t, err)
	var tooLarge *apierr.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestStore_RejectsObservedOverflowWhenLengthUnknown(t *testing.T) {
	p, _ := newTestPipeline(10)
	_, err := p.Store(context.Background(), Request{
		Principal:     "alice",
		Path:          "big.bin",
		ContentLength: -1,
		Body:          bytes.NewReader(bytes.Repeat([]byte("x"), 1000)),
	}, false)
	require.Error(t, err)
	var tooLarge *apierr.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestStore_ProofCheckerRejectionStopsBeforeWrite(t *testing.T) {
	drv := memdriver.New("", 0)
	p := &Pipeline{
		Driver:                 drv,
		ProofChecker:           rejectingChecker{},
		MaxFileUploadSizeBytes: 1024,
	}
	_, err := p.Store(context.Background(), Request{
		Principal: "alice",
		Path:      "a.txt",
		Body:      bytes.NewReader([]byte("x")),
	}, false)
	require.Error(t, err)
	var notEnough *apierr.NotEnoughProofError
	require.ErrorAs(t, err, &notEnough)

	fi, err := drv.PerformRead(context.Background(), "alice", "a.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists, "rejected proof check must short-circuit before any driver write")
}

func TestStore_ArchivalRenamesExistingBeforeWrite(t *testing.T) {
	p, drv := newTestPipeline(1024)
	ctx := context.Background()

	_, err := p.Store(ctx, Request{Principal: "alice", Path: "note.txt", Body: bytes.NewReader([]byte("v1"))}, true)
	require.NoError(t, err)

	_, err = p.Store(ctx, Request{Principal: "alice", Path: "note.txt", Body: bytes.NewReader([]byte("v2"))}, true)
	require.NoError(t, err)

	fi, err := drv.PerformRead(ctx, "alice", "note.txt")
	require.NoError(t, err)
	require.True(t, fi.Exists)
	body := readAll(t, fi)
	assert.Equal(t, "v2", body)

	lp, err := drv.ListFiles(ctx, "alice/", nil)
	require.NoError(t, err)
	var historical []string
	for _, e := range lp.Entries {
		if strings.Contains(e.Name, ".history.") {
			historical = append(historical, e.Name)
		}
	}
	require.Len(t, historical, 1, "the first write's content must survive under a historical name")
}

func TestStore_ArchivalFirstWriteHasNothingToArchive(t *testing.T) {
	p, _ := newTestPipeline(1024)
	_, err := p.Store(context.Background(), Request{Principal: "alice", Path: "note.txt", Body: bytes.NewReader([]byte("v1"))}, true)
	require.NoError(t, err)
}

func TestRewriteURL_Idempotent(t *testing.T) {
	hubPrefix := "https://read.example.com"
	url := rewriteURL("https://storage.example.com/alice/a.txt", "https://storage.example.com", hubPrefix, "alice", "a.txt")
	assert.Equal(t, "https://read.example.com/alice/a.txt", url)

	// Rewriting an already-rewritten URL must be a no-op.
	again := rewriteURL(url, "https://storage.example.com", hubPrefix, "alice", "a.txt")
	assert.Equal(t, url, again)
}

func TestRewriteURL_NoHubPrefixLeavesURLAlone(t *testing.T) {
	url := rewriteURL("https://storage.example.com/alice/a.txt", "https://storage.example.com", "", "alice", "a.txt")
	assert.Equal(t, "https://storage.example.com/alice/a.txt", url)
}

func TestHistoricalName_EmbedsDirAndOriginalName(t *testing.T) {
	name, err := HistoricalName("photos/a.png", func() (string, error) { return "0123456789", nil })
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "photos/.history."))
	assert.True(t, strings.HasSuffix(name, ".0123456789.a.png"))
}

func TestHistoricalName_PropagatesRandSuffixError(t *testing.T) {
	_, err := HistoricalName("a.png", func() (string, error) { return "", errors.New("rng unavailable") })
	require.Error(t, err)
}

func TestParseContentLength_AbsentOrNonPositiveIsUnknown(t *testing.T) {
	assert.EqualValues(t, -1, ParseContentLength(""))
	assert.EqualValues(t, -1, ParseContentLength("0"))
	assert.EqualValues(t, -1, ParseContentLength("-5"))
	assert.EqualValues(t, -1, ParseContentLength("not-a-number"))
	assert.EqualValues(t, 42, ParseContentLength("42"))
}

func TestIsArchivalWrite_ReflectsScopeSet(t *testing.T) {
	assert.False(t, IsArchivalWrite(hubtoken.ScopeSet{}))
	assert.True(t, IsArchivalWrite(hubtoken.ScopeSet{PutFileArchival: []string{"a.txt"}}))
}

type rejectingChecker struct{}

func (rejectingChecker) CheckProofs(context.Context, string) error {
	return &apierr.NotEnoughProofError{Msg: "not enough proof"}
}

func readAll(t *testing.T, fi driver.FileInfo) string {
	t.Helper()
	defer fi.ReadStream.Close()
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(fi.ReadStream)
	require.NoError(t, err)
	return buf.String()
}
