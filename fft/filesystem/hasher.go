package filesystem

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	internal "github.com/BenEdridge/fast-file-tracker/fft"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the XXH64 (seed 0) digest of a file's content.
type Fingerprint uint64

// String renders the fingerprint as 16 lowercase, zero-padded hex characters.
func (f Fingerprint) String() string {
	const width = 16
	s := strconv.FormatUint(uint64(f), 16)
	if len(s) < width {
		return zeros[:width-len(s)] + s
	}
	return s
}

const zeros = "0000000000000000"

// Hasher fingerprints files through pooled buffered readers. It is safe for
// concurrent use.
type Hasher struct {
	bufSize int
	readers sync.Pool
}

// NewHasher returns a hasher whose readers hold bufSize bytes. Sizes below
// bufio's minimum of 16 are raised by bufio itself; zero selects the default.
func NewHasher(bufSize int) *Hasher {
	if bufSize <= 0 {
		bufSize = internal.DefaultReadBufferSize
	}
	h := &Hasher{bufSize: bufSize}
	h.readers.New = func() any {
		return bufio.NewReaderSize(nil, h.bufSize)
	}
	return h
}

// HashFile opens path for sequential reading and fingerprints its content.
// Failures wrap common.ErrHashIOFailed.
func (h *Hasher) HashFile(path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", common.ErrHashIOFailed, path, err)
	}
	defer file.Close()

	fp, err := h.HashReader(file)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", common.ErrHashIOFailed, path, err)
	}
	return fp, nil
}

// HashReader fingerprints everything r yields. Chunks are fed to the digest
// straight out of the reader's buffer and then discarded; an empty buffer
// after a fill means end of input.
func (h *Hasher) HashReader(r io.Reader) (Fingerprint, error) {
	br := h.readers.Get().(*bufio.Reader)
	br.Reset(r)
	defer func() {
		br.Reset(nil)
		h.readers.Put(br)
	}()

	digest := xxhash.New()
	for {
		// Peek(1) fills the buffer when it is empty.
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		chunk, _ := br.Peek(br.Buffered())
		_, _ = digest.Write(chunk) // never fails
		if _, err := br.Discard(len(chunk)); err != nil {
			return 0, err
		}
	}
	return Fingerprint(digest.Sum64()), nil
}
