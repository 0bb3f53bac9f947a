// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/telme/lib/record"
)

// Compression selects how rotated file segments are compressed.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", compression)
	}
}

// Extension is the suffix appended to a rotated segment compressed
// with this algorithm.
func (compression Compression) Extension() string {
	switch compression {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ParseCompression parses "none", "zstd" or "lz4". The empty string is
// CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd or lz4)", name)
	}
}

// DigestExtension is the suffix of the file holding a rotated
// segment's BLAKE3 digest.
const DigestExtension = ".b3"

// ErrFileLocked is returned by [OpenFile] when another open file sink
// already holds the output file.
var ErrFileLocked = errors.New("file sink: output file is locked by another writer")

// FileOptions configures a [File] sink.
type FileOptions struct {
	// Path of the active output file. Rotated segments are written
	// next to it as Path.000001, Path.000002, ... plus the
	// compression extension.
	Path string

	// MaxBytes rotates the active file once it reaches this size.
	// Zero disables rotation.
	MaxBytes int64

	Compression Compression

	Logger *slog.Logger
}

// File appends one JSON object per record to a file. The file is held
// under an exclusive flock for as long as the sink is open.
type File struct {
	path        string
	maxBytes    int64
	compression Compression
	logger      *slog.Logger

	mu      sync.Mutex
	file    *os.File
	closed  bool
	size    int64
	segment int
}

// OpenFile opens (creating if needed) the output file in append mode
// and locks it. It fails with [ErrFileLocked] if another sink holds the
// lock.
func OpenFile(options FileOptions) (*File, error) {
	if options.Path == "" {
		return nil, errors.New("file sink: Path is required")
	}
	if options.MaxBytes < 0 {
		return nil, fmt.Errorf("file sink: MaxBytes must not be negative, got %d", options.MaxBytes)
	}
	if options.Logger == nil {
		return nil, errors.New("file sink: Logger is required")
	}

	segment, err := lastSegment(options.Path)
	if err != nil {
		return nil, err
	}

	sink := &File{
		path:        options.Path,
		maxBytes:    options.MaxBytes,
		compression: options.Compression,
		logger:      options.Logger,
		segment:     segment,
	}
	if err := sink.open(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (f *File) Name() string { return "file:" + f.path }

// WriteBatch appends the batch's records, one line each, then rotates
// if the file has reached MaxBytes. A record whose payload cannot be
// rendered is written as {"id", "kind", "fallback"} with the plain
// rendering in "fallback". If an earlier rotation could not reopen the
// active file, the open is retried here.
func (f *File) WriteBatch(batch record.Batch) error {
	var buffer bytes.Buffer
	for _, r := range batch.Records {
		line, err := RenderJSON(r, false)
		if err != nil {
			line, err = json.Marshal(map[string]any{
				"id":       r.ID,
				"kind":     r.Kind,
				"fallback": RenderPlain(r),
			})
			if err != nil {
				return fmt.Errorf("file sink: rendering fallback for record %d: %w", r.ID, err)
			}
		}
		buffer.Write(line)
		buffer.WriteByte('\n')
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("file sink %s: closed", f.path)
	}
	if f.file == nil {
		if err := f.open(); err != nil {
			return fmt.Errorf("file sink %s: reopening for batch %d: %w", f.path, batch.Sequence, err)
		}
	}
	written, err := f.file.Write(buffer.Bytes())
	f.size += int64(written)
	if err != nil {
		return fmt.Errorf("file sink %s: writing batch %d: %w", f.path, batch.Sequence, err)
	}
	if f.maxBytes > 0 && f.size >= f.maxBytes {
		if err := f.rotate(); err != nil {
			return fmt.Errorf("file sink %s: rotating: %w", f.path, err)
		}
	}
	return nil
}

// Close releases the lock and closes the active file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *File) open() error {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: opening %s: %w", f.path, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrFileLocked, f.path)
		}
		return fmt.Errorf("file sink: locking %s: %w", f.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("file sink: stat %s: %w", f.path, err)
	}
	f.file = file
	f.size = info.Size()
	return nil
}

// rotate moves the active file to the next segment name, compresses
// and digests it, and reopens an empty active file. The segment is
// finished even when the reopen fails; the next WriteBatch retries the
// open. Caller holds f.mu.
func (f *File) rotate() error {
	if err := f.file.Close(); err != nil {
		return err
	}
	f.file = nil

	f.segment++
	segmentPath := fmt.Sprintf("%s.%06d", f.path, f.segment)
	if err := os.Rename(f.path, segmentPath); err != nil {
		return err
	}
	reopenErr := f.open()

	finalPath, err := compressSegment(segmentPath, f.compression)
	if err != nil {
		return errors.Join(reopenErr, err)
	}
	if err := writeDigest(finalPath); err != nil {
		return errors.Join(reopenErr, err)
	}
	f.logger.Info("rotated signal file",
		"path", f.path,
		"segment", finalPath,
		"compression", f.compression.String(),
	)
	return reopenErr
}

// compressSegment replaces the segment at path with its compressed
// form and returns the resulting path. CompressionNone leaves the
// segment as is.
func compressSegment(path string, compression Compression) (string, error) {
	if compression == CompressionNone {
		return path, nil
	}

	source, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer source.Close()

	compressedPath := path + compression.Extension()
	destination, err := os.OpenFile(compressedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	var writer io.WriteCloser
	switch compression {
	case CompressionZstd:
		writer, err = zstd.NewWriter(destination)
		if err != nil {
			destination.Close()
			return "", fmt.Errorf("zstd writer: %w", err)
		}
	case CompressionLZ4:
		writer = lz4.NewWriter(destination)
	default:
		destination.Close()
		return "", fmt.Errorf("unsupported compression %s", compression)
	}

	if _, err := io.Copy(writer, source); err != nil {
		writer.Close()
		destination.Close()
		return "", fmt.Errorf("%s compress: %w", compression, err)
	}
	if err := writer.Close(); err != nil {
		destination.Close()
		return "", fmt.Errorf("%s compress: %w", compression, err)
	}
	if err := destination.Close(); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return compressedPath, nil
}

// DigestFile returns the hex BLAKE3 digest of the file at path.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// writeDigest writes "<hex>  <basename>\n" to path+".b3", the format
// b3sum reads with --check.
func writeDigest(path string) error {
	digest, err := DigestFile(path)
	if err != nil {
		return err
	}
	line := digest + "  " + filepath.Base(path) + "\n"
	return os.WriteFile(path+DigestExtension, []byte(line), 0o644)
}

// VerifySegment checks a rotated segment against its digest file.
func VerifySegment(path string) error {
	content, err := os.ReadFile(path + DigestExtension)
	if err != nil {
		return fmt.Errorf("reading digest for %s: %w", path, err)
	}
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return fmt.Errorf("digest file for %s is empty", path)
	}
	actual, err := DigestFile(path)
	if err != nil {
		return err
	}
	if actual != fields[0] {
		return fmt.Errorf("segment %s digest mismatch: recorded %s, actual %s", path, fields[0], actual)
	}
	return nil
}

// Segments lists the rotated segments of the file sink at path in
// rotation order, excluding digest files.
func Segments(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return nil, err
	}
	type numbered struct {
		path   string
		number int
	}
	var segments []numbered
	for _, match := range matches {
		number, ok := segmentNumber(path, match)
		if !ok {
			continue
		}
		segments = append(segments, numbered{path: match, number: number})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].number < segments[j].number })

	result := make([]string, len(segments))
	for i, segment := range segments {
		result[i] = segment.path
	}
	return result, nil
}

// lastSegment returns the highest existing segment number so a reopened
// sink continues the sequence instead of overwriting segments.
func lastSegment(path string) (int, error) {
	segments, err := Segments(path)
	if err != nil {
		return 0, fmt.Errorf("file sink: listing segments of %s: %w", path, err)
	}
	if len(segments) == 0 {
		return 0, nil
	}
	number, _ := segmentNumber(path, segments[len(segments)-1])
	return number, nil
}

func segmentNumber(path, candidate string) (int, bool) {
	suffix := strings.TrimPrefix(candidate, path+".")
	if strings.HasSuffix(suffix, DigestExtension) {
		return 0, false
	}
	suffix = strings.TrimSuffix(suffix, CompressionZstd.Extension())
	suffix = strings.TrimSuffix(suffix, CompressionLZ4.Extension())
	number, err := strconv.Atoi(suffix)
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}
