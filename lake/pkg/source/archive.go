package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

var ErrArchiveMemberNotFound = errors.New("archive member not found")

// ExtractMember returns the contents of the named member of a zip archive. A member inside a
// directory matches on its base name.
func ExtractMember(data []byte, member string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
		if f.Name != member && !strings.EqualFold(path.Base(f.Name), member) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive member %s: %w", f.Name, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(io.LimitReader(rc, maxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read archive member %s: %w", f.Name, err)
		}
		if len(body) > maxBodyBytes {
			return nil, fmt.Errorf("archive member %s exceeds %d bytes", f.Name, maxBodyBytes)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: %q (archive has %s)", ErrArchiveMemberNotFound, member, strings.Join(names, ", "))
}
