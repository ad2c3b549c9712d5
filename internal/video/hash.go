package video

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// osdbChunkSize is the size of the head and tail chunks summed by the
// OpenSubtitles hash algorithm.
const osdbChunkSize = 64 * 1024

// napiprojektReadSize is the amount of leading file content hashed by the
// Napiprojekt algorithm.
const napiprojektReadSize = 10 * 1024 * 1024

// OpenSubtitlesHash computes the 64-bit OpenSubtitles movie hash: the file
// size plus the sum of the first and last 64KB read as little-endian
// 64-bit words, masked to 64 bits and rendered as 16 lowercase hex
// digits. Files smaller than 128KB yield no hash.
func OpenSubtitlesHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opensubtitles hash: open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("opensubtitles hash: stat %s: %w", path, err)
	}

	size := stat.Size()
	if size < osdbChunkSize*2 {
		return "", nil
	}

	head := make([]byte, osdbChunkSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("opensubtitles hash: read head of %s: %w", path, err)
	}

	tail := make([]byte, osdbChunkSize)
	if _, err := f.ReadAt(tail, size-osdbChunkSize); err != nil {
		return "", fmt.Errorf("opensubtitles hash: read tail of %s: %w", path, err)
	}

	sum := uint64(size)
	for i := 0; i < osdbChunkSize; i += 8 {
		sum += binary.LittleEndian.Uint64(head[i : i+8])
	}
	for i := 0; i < osdbChunkSize; i += 8 {
		sum += binary.LittleEndian.Uint64(tail[i : i+8])
	}

	return fmt.Sprintf("%016x", sum), nil
}

// NapiprojektHash computes the MD5 of the first 10 MiB of path, lowercase
// hex. Files shorter than 10 MiB hash their entire content.
func NapiprojektHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("napiprojekt hash: open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyN(h, f, napiprojektReadSize); err != nil && err != io.EOF {
		return "", fmt.Errorf("napiprojekt hash: read %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
