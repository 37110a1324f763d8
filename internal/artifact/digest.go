package artifact

import (
	"crypto"
	_ "crypto/sha1" // registers SHA-1 with crypto.SHA1
	"encoding/hex"
	"fmt"
	"io"
	"os"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
)

// digestBufferSize is the chunk size files are streamed through the hash in.
const digestBufferSize = 4096

// SHA1Reader returns the lowercase hex SHA-1 of everything read from r.
func SHA1Reader(r io.Reader) (string, error) {
	if !crypto.SHA1.Available() {
		return "", ierrors.DigestUnavailableError("SHA-1")
	}
	h := crypto.SHA1.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, digestBufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA1File returns the lowercase hex SHA-1 of the file at path.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sum, err := SHA1Reader(f)
	if err != nil {
		if ierrors.IsFatal(err) {
			return "", err
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sum, nil
}
