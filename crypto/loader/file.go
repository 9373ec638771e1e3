package loader

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// FileLoader is loader that is storing the keys to a file. The key is written
// in hexadecimal so that it can be copied around as text.
//
// - implements loader.Loader
type fileLoader struct {
	path string

	readFn  func(path string) ([]byte, error)
	writeFn func(path string, data []byte, perms os.FileMode) error
	statFn  func(path string) (os.FileInfo, error)
}

// NewFileLoader creates a new loader that is using the file given in parameter.
func NewFileLoader(path string) Loader {
	return fileLoader{
		path:    path,
		readFn:  os.ReadFile,
		writeFn: os.WriteFile,
		statFn:  os.Stat,
	}
}

// LoadOrCreate implements loader.Loader. It either loads the key from the file
// if it exists, or it generates a new one and stores it in the file.
func (l fileLoader) LoadOrCreate(g Generator) ([]byte, error) {
	_, err := l.statFn(l.path)
	if os.IsNotExist(err) {
		data, err := g.Generate()
		if err != nil {
			return nil, xerrors.Errorf("generator failed: %v", err)
		}

		err = l.Save(data, false)
		if err != nil {
			return nil, err
		}

		return data, nil
	}

	data, err := l.Load()
	if err != nil {
		return nil, xerrors.Errorf("failed to load file: %v", err)
	}

	return data, nil
}

// Load implements loader.Loader. It loads the key from the file if it exists,
// otherwise it returns an error.
func (l fileLoader) Load() ([]byte, error) {
	text, err := l.readFn(l.path)
	if err != nil {
		return nil, xerrors.Errorf("while reading file: %v", err)
	}

	data, err := hex.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return nil, xerrors.Errorf("malformed key: %v", err)
	}

	return data, nil
}

// Save implements loader.Loader. The file created has minimal read permission
// for the current user (0400), and its folder is created if needed.
func (l fileLoader) Save(data []byte, force bool) error {
	_, err := l.statFn(l.path)
	if err == nil && !force {
		return xerrors.Errorf("file '%s' already exists", l.path)
	}

	if err == nil {
		// The previous key is read-only.
		err = os.Remove(l.path)
		if err != nil {
			return xerrors.Errorf("while removing file: %v", err)
		}
	}

	err = os.MkdirAll(filepath.Dir(l.path), 0700)
	if err != nil {
		return xerrors.Errorf("while creating folder: %v", err)
	}

	err = l.writeFn(l.path, []byte(hex.EncodeToString(data)+"\n"), 0400)
	if err != nil {
		return xerrors.Errorf("while writing: %v", err)
	}

	return nil
}
