// Copyright 2025 Tradeledger Authors
package attachment

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/crypto"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestImportThenOpenRoundTrips(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	archive := buildZip(t, map[string]string{"contract.jar": "hello world"})
	hash, err := store.Import(bytes.NewReader(archive))
	require.NoError(t, err)

	rc, err := store.Open(hash)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, archive, got)
}

func TestImportIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	archive := buildZip(t, map[string]string{"a.txt": "same bytes"})
	hash1, err := store.Import(bytes.NewReader(archive))
	require.NoError(t, err)
	hash2, err := store.Import(bytes.NewReader(archive))
	require.NoError(t, err)
	require.True(t, hash1.Equal(hash2))
}

func TestOpenUnknownHashReturnsNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(crypto.SHA256([]byte("never imported")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestImportRejectsAbsolutePath(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	archive := buildZip(t, map[string]string{"/etc/passwd": "evil"})
	_, err = store.Import(bytes.NewReader(archive))
	require.ErrorIs(t, err, ErrMalformedAttachment)
}

func TestImportRejectsDotDotEscape(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	archive := buildZip(t, map[string]string{"../../escape.txt": "evil"})
	_, err = store.Import(bytes.NewReader(archive))
	require.ErrorIs(t, err, ErrMalformedAttachment)
}

func TestImportRejectsBackslashPath(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	archive := buildZip(t, map[string]string{`windows\path.txt`: "evil"})
	_, err = store.Import(bytes.NewReader(archive))
	require.ErrorIs(t, err, ErrMalformedAttachment)
}
