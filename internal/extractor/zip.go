package extractor

import (
	"archive/zip"
	"fmt"
	"io"
)

// readZipEntry opens a zip archive (a .docx is a zip container) and
// returns the raw bytes of the named entry.
func readZipEntry(archivePath, entryName string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryName {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open entry %s: %w", entryName, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found", entryName)
}
