package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"migra/pkg/domain"
)

// metadataPrefix is the folder macOS Finder adds to archives it creates.
const metadataPrefix = "__MACOSX/"

// Entry is one file stored inside an uploaded archive. It keeps the handle to
// the compressed member so the content can be read again after analysis.
type Entry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`

	file *zip.File
}

// Load decodes the central directory of a ZIP archive held in memory and
// returns its eligible file entries in archive order. Directories and OS
// metadata entries are dropped. An archive with no eligible entries is not an
// error here; callers decide how to report it.
func Load(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, domain.NewInvalidArchiveError(errors.New("empty buffer"))
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewInvalidArchiveError(err)
	}

	entries := make([]Entry, 0, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if isMetadata(f.Name) {
			continue
		}
		entries = append(entries, Entry{
			Name: f.Name,
			Size: int64(f.UncompressedSize64),
			file: f,
		})
	}
	return entries, nil
}

// Find returns the entry with the given name.
func Find(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Open returns a reader over the decompressed content of the entry.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %q has no archive handle", e.Name)
	}
	return e.file.Open()
}

// ReadAll reads the full decompressed content of the entry.
func (e Entry) ReadAll() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Name, err)
	}
	return data, nil
}

func isMetadata(name string) bool {
	name = strings.TrimLeft(name, "/")
	return strings.HasPrefix(name, metadataPrefix) || strings.Contains(name, "/"+metadataPrefix)
}
