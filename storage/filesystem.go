package storage

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/casdoor/oss"
	"github.com/pkg/errors"
)

// LocalFileSystem stores objects below Folder and serves them under URLPrefix.
type LocalFileSystem struct {
	Folder    string
	URLPrefix string
}

func NewFileSystem(folder, urlPrefix string) (*LocalFileSystem, error) {
	if folder == "" {
		folder = "./media"
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve storage folder %s", folder)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage folder %s", abs)
	}
	return &LocalFileSystem{Folder: abs, URLPrefix: urlPrefix}, nil
}

// GetFullPath maps an object key to a path inside Folder. Keys cannot climb out of it.
func (fs *LocalFileSystem) GetFullPath(p string) string {
	clean := path.Clean("/" + filepath.ToSlash(p))
	return filepath.Join(fs.Folder, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

func (fs *LocalFileSystem) Get(p string) (*os.File, error) {
	f, err := os.Open(fs.GetFullPath(p))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", p)
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.Wrapf(os.ErrNotExist, "%s is a directory", p)
	}
	return f, nil
}

func (fs *LocalFileSystem) GetStream(p string) (io.ReadCloser, error) {
	return fs.Get(p)
}

// Put writes r to p, replacing any existing object. A failed copy leaves nothing behind.
func (fs *LocalFileSystem) Put(p string, r io.Reader) (*oss.Object, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}
	fp := fs.GetFullPath(p)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create directories for file path")
	}

	dst, err := os.Create(fp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	defer dst.Close()

	size, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(fp)
		return nil, errors.Wrap(err, "failed to copy data to file")
	}

	info, err := dst.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat file")
	}
	mt := info.ModTime()
	return &oss.Object{
		Path:             p,
		Name:             filepath.Base(fp),
		LastModified:     &mt,
		Size:             size,
		StorageInterface: fs,
	}, nil
}

func (fs *LocalFileSystem) Delete(p string) error {
	if err := os.Remove(fs.GetFullPath(p)); err != nil {
		return errors.Wrapf(err, "delete %s", p)
	}
	return nil
}

func (fs *LocalFileSystem) List(p string) ([]*oss.Object, error) {
	var (
		objects []*oss.Object
		root    = fs.GetFullPath(p)
	)
	err := filepath.Walk(root, func(fp string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(fs.Folder, fp)
		if err != nil {
			return err
		}
		mt := info.ModTime()
		objects = append(objects, &oss.Object{
			Path:             filepath.ToSlash(rel),
			Name:             info.Name(),
			LastModified:     &mt,
			Size:             info.Size(),
			StorageInterface: fs,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list files")
	}
	return objects, nil
}

func (fs *LocalFileSystem) GetEndpoint() string {
	return fs.URLPrefix
}

func (fs *LocalFileSystem) GetURL(p string) (string, error) {
	return path.Join(fs.URLPrefix, path.Clean("/"+p)), nil
}
