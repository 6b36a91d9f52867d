package transport

import (
	"github.com/spf13/afero"
)

// Storage is the file system the desktop backend keeps its roots on.
type Storage interface {
	Fs() afero.Fs
	Describe() string
	Close() error
}

// LocalStorage is the machine's own file system.
type LocalStorage struct {
	fs afero.Fs
}

func NewLocalStorage() *LocalStorage {
	return &LocalStorage{fs: afero.NewOsFs()}
}

func (s *LocalStorage) Fs() afero.Fs { return s.fs }

func (s *LocalStorage) Describe() string { return "local" }

func (s *LocalStorage) Close() error { return nil }
