// Package zip builds flat archives of generated artifacts.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Entry is one file in the archive.
type Entry struct {
	Name string
	Data []byte
}

// FileEntry maps an archive name to a file on disk whose contents are
// streamed into the archive.
type FileEntry struct {
	Name string
	Path string
}

// Write streams an archive of the given entries to w.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		fw, err := zw.Create(entry.Name)
		if err != nil {
			return fmt.Errorf("zip: add %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: close archive: %w", err)
	}
	return nil
}

// Build returns an in-memory archive of the given entries.
func Build(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFiles streams an archive to w from entries on disk plus any extra
// in-memory entries. Files that do not exist are skipped so a partial run
// still archives whatever it produced.
func WriteFiles(w io.Writer, files []FileEntry, extra []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range extra {
		fw, err := zw.Create(entry.Name)
		if err != nil {
			return fmt.Errorf("zip: add %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	for _, file := range files {
		if err := copyFile(zw, file); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: close archive: %w", err)
	}
	return nil
}

func copyFile(zw *zip.Writer, file FileEntry) error {
	f, err := os.Open(file.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("zip: open %s: %w", file.Path, err)
	}
	defer f.Close()

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: add %s: %w", name, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return fmt.Errorf("zip: write %s: %w", name, err)
	}
	return nil
}
