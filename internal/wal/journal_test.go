package wal

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	payload, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)

	_, err = readFrame(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := readFrame(bytes.NewReader(corrupted))
	require.Error(t, err)
	require.True(t, Recoverable(err))
}

func TestReadFrameDetectsTruncation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello world")))

	truncated := buf.Bytes()[:len(buf.Bytes())-3]
	_, err := readFrame(bytes.NewReader(truncated))
	require.Error(t, err)
	require.True(t, Recoverable(err))
}

func TestMultipleFramesSequential(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("one")))
	require.NoError(t, writeFrame(&buf, []byte("two")))

	p1, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), p1)

	p2, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("two"), p2)
}
