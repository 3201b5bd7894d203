package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docrag/core"
)

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadPath reads the document at path, or every supported document below it
// when path is a directory. Unsupported files inside a directory are skipped;
// an unsupported file named directly returns ErrUnsupportedFileType. Files
// with no text are skipped.
func LoadPath(path string) ([]*core.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !Supported(abs) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
		}
		doc, err := loadFile(abs)
		if err != nil || doc == nil {
			return nil, err
		}
		return []*core.Document{doc}, nil
	}

	var docs []*core.Document
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Supported(p) {
			return nil
		}
		doc, err := loadFile(p)
		if err != nil {
			return err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func loadFile(path string) (*core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return &core.Document{
		ID:    DocumentID(path),
		Path:  path,
		Title: filepath.Base(path),
		Text:  text,
	}, nil
}

// DocumentID returns the id a document loaded from path is stored under.
func DocumentID(path string) core.ID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return core.IDFromContent(path)
}
