package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/marmos91/tgcloud/pkg/bufpool"
)

// countingReader adds every successfully read byte to the shared progress
// counter. The counter uses relaxed atomic adds; readers see a
// monotonically non-decreasing approximation, never an exact figure.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func newCountingReader(r io.Reader, n *atomic.Int64) *countingReader {
	return &countingReader{r: r, n: n}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n.Add(int64(n))
	}
	return n, err
}

// copyWithProgress copies src to dst through a pooled 64 KiB buffer, adding
// each written slice's length to the shared counter.
func copyWithProgress(dst io.Writer, src io.Reader, counter *atomic.Int64) (int64, error) {
	buf := bufpool.Get(bufpool.CopySize)
	defer bufpool.Put(buf)

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			counter.Add(int64(n))
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// sha256File streams the file once and returns the lowercase hex digest.
// The digest commits to the source content before any transfer begins, not
// to whatever bytes the upload happened to read.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	buf := bufpool.Get(bufpool.CopySize)
	defer bufpool.Put(buf)

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
