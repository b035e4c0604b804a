package upload

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaharov-labs/stackhub/apierr"
)

func TestMonitoredReader_PassesThroughUnderLimit(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	m := newMonitoredReader(src, 100)

	out, err := io.ReadAll(m)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.EqualValues(t, 11, m.bytesRead())
	assert.NoError(t, m.terminalErr())
}

func TestMonitoredReader_AbortsOnOvershoot(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("x"), 1000))
	m := newMonitoredReader(src, 10)

	_, err := io.ReadAll(m)
	require.Error(t, err)
	var tooLarge *apierr.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Error(t, m.terminalErr())
}

func TestMonitoredReader_WaitObservesTerminalError(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("x"), 1000))
	m := newMonitoredReader(src, 10)

	done := make(chan error, 1)
	go func() { done <- m.wait(nil) }()

	_, _ = io.ReadAll(m)
	err := <-done
	require.Error(t, err)
	var tooLarge *apierr.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestMonitoredReader_WaitReturnsNilOnCleanEOF(t *testing.T) {
	src := bytes.NewReader([]byte("ok"))
	m := newMonitoredReader(src, 100)

	_, _ = io.ReadAll(m)
	assert.NoError(t, m.wait(nil))
}
