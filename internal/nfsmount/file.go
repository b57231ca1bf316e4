package nfsmount

import (
	"io"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/termtree/internal/graph"
)

// roFile is a read-only billy.File over a fixed-size content source.
// Write and Truncate return errReadOnly.
type roFile struct {
	name   string
	size   int64
	readAt func(p []byte, off int64) (int, error)
	pos    int64
}

// newGraphFile reads content through graph.ReadContent on every call.
func newGraphFile(g graph.Graph, id string, size int64) *roFile {
	return &roFile{
		name: id,
		size: size,
		readAt: func(p []byte, off int64) (int, error) {
			return g.ReadContent(id, p, off)
		},
	}
}

// newBytesFile serves a static byte slice.
func newBytesFile(name string, data []byte) *roFile {
	return &roFile{
		name: name,
		size: int64(len(data)),
		readAt: func(p []byte, off int64) (int, error) {
			return copy(p, data[off:]), nil
		},
	}
}

func (f *roFile) Name() string { return f.name }

func (f *roFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt returns io.EOF together with the last bytes of the content.
func (f *roFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	if remaining := f.size - off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := f.readAt(p, off)
	if err != nil {
		return n, err
	}
	if n == 0 || off+int64(n) >= f.size {
		return n, io.EOF
	}
	return n, nil
}

func (f *roFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = f.size + offset
	}
	f.pos = max(next, 0)
	return f.pos, nil
}

func (f *roFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *roFile) Truncate(int64) error      { return errReadOnly }
func (f *roFile) Lock() error               { return nil }
func (f *roFile) Unlock() error             { return nil }
func (f *roFile) Close() error              { return nil }

var _ billy.File = (*roFile)(nil)
