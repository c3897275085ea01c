package fingerprint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// chunkSize is how much of the head and tail of a file feeds the hash.
// Sampling instead of reading whole multi-gigabyte media files keeps a
// library-wide hashing pass cheap while still catching any remux or re-encode.
const chunkSize = 64 * 1024

// File computes a stable fingerprint for a media file from its size plus the
// first and last 64 KiB of content.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	h := xxhash.New()
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(info.Size()))
	h.Write(sizeBuf[:])

	if _, err := io.CopyN(h, f, chunkSize); err != nil && err != io.EOF {
		return "", fmt.Errorf("read head of %s: %w", path, err)
	}

	if info.Size() > 2*chunkSize {
		if _, err := f.Seek(-chunkSize, io.SeekEnd); err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("read tail of %s: %w", path, err)
		}
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
