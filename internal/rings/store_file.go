package rings

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"liquor-dashboard/internal/errors"
)

// FileStore writes one JSON file per key under dir. Writes go to a temp file
// that is renamed into place, so a reader sees either the previous document
// or the new one, never a partial write.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.FileHandoffWrap(err, fmt.Sprintf("create ring hand-off dir %s", dir))
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Put(_ context.Context, key string, doc *Document) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := MarshalIndent(doc)
	if err != nil {
		return errors.InternalWrap(err, "encode ring document")
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return errors.FileHandoffWrap(err, "create ring document temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.FileHandoffWrap(err, "write ring document")
	}
	if err := tmp.Close(); err != nil {
		return errors.FileHandoffWrap(err, "close ring document")
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return errors.FileHandoffWrap(err, "publish ring document")
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (*Document, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.FileHandoffWrap(err, "read ring document")
	}

	doc, err := Unmarshal(data)
	if err != nil {
		return nil, errors.FileHandoffWrap(err, "decode ring document")
	}
	return doc, nil
}

func (s *FileStore) Close() error {
	return nil
}
