package main

import (
	"io"
	"io/fs"
	"path"
	"time"

	"golang.org/x/mobile/asset"
)

// mobileAssets exposes the app's packaged assets as an fs.FS.
type mobileAssets struct{}

func (mobileAssets) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	f, err := asset.Open(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &assetFile{File: f, name: name}, nil
}

// ReadFile reads a whole asset without stat support from the platform.
func (m mobileAssets) ReadFile(name string) ([]byte, error) {
	f, err := m.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type assetFile struct {
	asset.File
	name string
}

// Stat measures the asset by seeking to its end.
func (f *assetFile) Stat() (fs.FileInfo, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	return assetInfo{name: path.Base(f.name), size: size}, nil
}

type assetInfo struct {
	name string
	size int64
}

func (i assetInfo) Name() string       { return i.name }
func (i assetInfo) Size() int64        { return i.size }
func (i assetInfo) Mode() fs.FileMode  { return 0o444 }
func (i assetInfo) ModTime() time.Time { return time.Time{} }
func (i assetInfo) IsDir() bool        { return false }
func (i assetInfo) Sys() any           { return nil }
