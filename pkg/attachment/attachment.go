// Copyright 2025 Tradeledger Authors
//
// Attachment store: a content-addressed blob store for the
// ZIP attachments transactions reference by hash. Import hashes the
// stream as it copies to a temp file, validates the archive is free of
// path-escaping entries, then atomically renames into place. Open wraps
// the returned stream so that — only if fully consumed — its actual hash
// is checked against the name it was opened under.
package attachment

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradeledger/core/pkg/crypto"
)

// Errors surfaced by the store.
var (
	// ErrMalformedAttachment is returned when an imported archive
	// contains an absolute path, a ".."-escaping path, or a backslash
	// path separator.
	ErrMalformedAttachment = errors.New("attachment: malformed archive")

	// ErrOnDiskHashMismatch is returned by a stream returned from Open
	// when the bytes actually read do not hash to the name they were
	// opened under.
	ErrOnDiskHashMismatch = errors.New("attachment: on-disk hash mismatch")

	// ErrNotFound is returned by Open when no attachment is stored under
	// the requested hash.
	ErrNotFound = errors.New("attachment: not found")
)

// Store is the interface the rest of the core depends on. Contracts and
// transactions hold only a weak reference (a hash) to an attachment; the
// store is the sole owner of the bytes.
type Store interface {
	// Open returns a stream for the attachment stored under hash, or
	// ErrNotFound.
	Open(hash crypto.SecureHash) (io.ReadCloser, error)
	// Import hashes r as it copies it to the store and returns the
	// resulting hash. Import is idempotent: importing the same bytes
	// twice yields the same hash and leaves exactly one file behind.
	Import(r io.Reader) (crypto.SecureHash, error)
}

// FileStore is a Store backed by one directory, one file per attachment,
// named by the upper-case hex form of its hash.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger attaches a logger to the store.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachment: create store dir: %w", err)
	}
	s := &FileStore{dir: dir, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) pathFor(hash crypto.SecureHash) string {
	return filepath.Join(s.dir, strings.ToUpper(hash.Hex()))
}

// Open implements Store.
func (s *FileStore) Open(hash crypto.SecureHash) (io.ReadCloser, error) {
	f, err := os.Open(s.pathFor(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attachment: open: %w", err)
	}
	return &hashCheckingStream{file: f, expected: hash, hasher: sha256.New()}, nil
}

// hashCheckingStream wraps an *os.File so that Close, when the stream was
// read to io.EOF, compares the accumulated hash against the name the file
// was opened under.
type hashCheckingStream struct {
	file     *os.File
	expected crypto.SecureHash
	hasher   interface {
		io.Writer
		Sum([]byte) []byte
	}
	reachedEOF bool
}

func (h *hashCheckingStream) Read(p []byte) (int, error) {
	n, err := h.file.Read(p)
	if n > 0 {
		h.hasher.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		h.reachedEOF = true
	}
	return n, err
}

func (h *hashCheckingStream) Close() error {
	closeErr := h.file.Close()
	if !h.reachedEOF {
		return closeErr
	}
	actual := h.hasher.Sum(nil)
	if !bytes.Equal(actual, h.expected.Bytes[:]) {
		return fmt.Errorf("%w: on-disk file %s hashes to %s", ErrOnDiskHashMismatch, h.expected, hex.EncodeToString(actual))
	}
	return closeErr
}

// Import implements Store. Collisions overwrite: if the final path
// already exists, its hash is
// compared first — a byte-identical reimport is a true no-op, otherwise
// the new bytes atomically replace the old file via rename.
func (s *FileStore) Import(r io.Reader) (crypto.SecureHash, error) {
	tmpName := "tmp." + uuid.New().String()
	tmpPath := filepath.Join(s.dir, tmpName)

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return crypto.SecureHash{}, fmt.Errorf("attachment: create temp file: %w", err)
	}
	defer os.Remove(tmpPath) // no-op once renamed away

	var archive bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(tmp, &archive), r); err != nil {
		tmp.Close()
		return crypto.SecureHash{}, fmt.Errorf("attachment: copy to temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return crypto.SecureHash{}, fmt.Errorf("attachment: close temp file: %w", err)
	}

	if err := validateZipEntries(archive.Bytes()); err != nil {
		return crypto.SecureHash{}, err
	}

	hash := crypto.SHA256(archive.Bytes())
	finalPath := s.pathFor(hash)

	if existing, statErr := os.Stat(finalPath); statErr == nil && !existing.IsDir() {
		sameHash, err := fileHashEquals(finalPath, hash)
		if err == nil && sameHash {
			s.logger.Debug().Str("hash", hash.Hex()).Msg("attachment import is a no-op, bytes already stored")
			return hash, nil
		}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return crypto.SecureHash{}, fmt.Errorf("attachment: finalize import: %w", err)
	}
	s.logger.Info().Str("hash", hash.Hex()).Msg("attachment imported")
	return hash, nil
}

func fileHashEquals(path string, want crypto.SecureHash) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false, err
	}
	return bytes.Equal(hasher.Sum(nil), want.Bytes[:]), nil
}

// validateZipEntries rejects archives containing absolute paths,
// ".."-escaping paths, or backslash path separators.
func validateZipEntries(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAttachment, err)
	}
	for _, f := range zr.File {
		name := f.Name
		if strings.Contains(name, "\\") {
			return fmt.Errorf("%w: entry %q contains a backslash", ErrMalformedAttachment, name)
		}
		if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
			return fmt.Errorf("%w: entry %q is an absolute path", ErrMalformedAttachment, name)
		}
		cleaned := filepath.ToSlash(filepath.Clean(name))
		if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			return fmt.Errorf("%w: entry %q escapes the archive root", ErrMalformedAttachment, name)
		}
	}
	return nil
}
