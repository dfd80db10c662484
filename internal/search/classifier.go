package search

import (
	"bytes"
	"io"
	"os"

	"github.com/standardbeagle/lcs/internal/protocol"
)

// IsTextFile sniffs the first bytes of an extensionless file. A zero byte in
// the sample means binary. Any failure to open or read also counts as binary,
// so unreadable files are left out rather than scanned.
func IsTextFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sample := make([]byte, protocol.ClassifierSampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false
	}
	return bytes.IndexByte(sample[:n], 0) < 0
}
