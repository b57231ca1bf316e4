// Package nfsmount serves a projected term tree over NFSv3. It adapts
// graph.Graph to billy.Filesystem for use with willscott/go-nfs.
package nfsmount

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/termtree/internal/graph"
)

// MountFile is the virtual root file describing the mount.
const MountFile = "_mount.json"

var errReadOnly = fmt.Errorf("read-only filesystem")

// MountInfo is the content of MountFile.
type MountInfo struct {
	Vocabulary string    `json:"vocabulary"`
	Driver     string    `json:"driver"`
	MountedAt  time.Time `json:"mounted_at"`
}

// GraphFS is a read-only billy.Filesystem over a graph.Graph.
type GraphFS struct {
	graph     graph.Graph
	infoJSON  []byte
	mountTime time.Time
}

// NewGraphFS creates a billy.Filesystem backed by g.
func NewGraphFS(g graph.Graph, info MountInfo) *GraphFS {
	if info.MountedAt.IsZero() {
		info.MountedAt = time.Now()
	}
	ij, _ := json.MarshalIndent(info, "", "  ")
	ij = append(ij, '\n')
	return &GraphFS{
		graph:     g,
		infoJSON:  ij,
		mountTime: info.MountedAt,
	}
}

// --- billy.Basic ---

func (fs *GraphFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *GraphFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *GraphFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}

	if filename == "/"+MountFile {
		return newBytesFile(MountFile, fs.infoJSON), nil
	}

	node, err := fs.graph.GetNode(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if node.Mode.IsDir() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}

	return newGraphFile(fs.graph, filename, node.ContentSize()), nil
}

func (fs *GraphFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *GraphFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *GraphFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *GraphFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *GraphFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *GraphFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	if path != "/" {
		node, err := fs.graph.GetNode(path)
		if err != nil {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
		}
		if !node.Mode.IsDir() {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
		}
	}

	children, err := fs.graph.ListChildren(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}

	infos := make([]os.FileInfo, 0, len(children)+1)
	if path == "/" {
		infos = append(infos, fs.mountFileInfo())
	}
	for _, childID := range children {
		childNode, err := fs.graph.GetNode(childID)
		if err != nil {
			continue
		}
		infos = append(infos, fs.nodeToFileInfo(childNode))
	}
	return infos, nil
}

func (fs *GraphFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *GraphFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	switch filename {
	case "/":
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	case "/" + MountFile:
		return fs.mountFileInfo(), nil
	}

	node, err := fs.graph.GetNode(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.nodeToFileInfo(node), nil
}

func (fs *GraphFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *GraphFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *GraphFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *GraphFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *GraphFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func (fs *GraphFS) mountFileInfo() os.FileInfo {
	return &staticFileInfo{
		name:    MountFile,
		size:    int64(len(fs.infoJSON)),
		mode:    0o444,
		modTime: fs.mountTime,
	}
}

// nodeToFileInfo converts a graph.Node to os.FileInfo. Nodes without a
// modification time report the mount time.
func (fs *GraphFS) nodeToFileInfo(n *graph.Node) os.FileInfo {
	mode := os.FileMode(0o444)
	if n.Mode.IsDir() {
		mode = os.ModeDir | 0o555
	}
	modTime := n.ModTime
	if modTime.IsZero() {
		modTime = fs.mountTime
	}
	return &staticFileInfo{
		name:    filepath.Base(n.ID),
		size:    n.ContentSize(),
		mode:    mode,
		modTime: modTime,
	}
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	return filepath.Clean("/" + path)
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*GraphFS)(nil)
	_ billy.Capable    = (*GraphFS)(nil)
)
