// Package fs exposes a projected term tree through FUSE (cgofuse).
package fs

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/termtree/internal/graph"
)

// TermFS implements the read-only FUSE interface from cgofuse over a graph.
// Term metadata is also readable as user.termtree.* extended attributes.
type TermFS struct {
	fuse.FileSystemBase
	Graph     graph.Graph
	mountTime fuse.Timespec
}

func NewTermFS(g graph.Graph) *TermFS {
	return &TermFS{
		Graph:     g,
		mountTime: fuse.NewTimespec(time.Now()),
	}
}

// Mount serves fs at mountpoint until the filesystem is unmounted.
func Mount(fs *TermFS, mountpoint string, opts []string) bool {
	host := fuse.NewFileSystemHost(fs)
	return host.Mount(mountpoint, append([]string{"-o", "ro"}, opts...))
}

// Open succeeds for regular files opened read-only.
func (fs *TermFS) Open(path string, flags int) (int, uint64) {
	node, err := fs.Graph.GetNode(path)
	if err != nil {
		return -fuse.ENOENT, 0
	}
	if node.Mode.IsDir() {
		return -fuse.EISDIR, 0
	}
	if flags&fuse.O_ACCMODE != fuse.O_RDONLY {
		return -fuse.EROFS, 0
	}
	return 0, 0
}

// Opendir succeeds for the root and directory nodes.
func (fs *TermFS) Opendir(path string) (int, uint64) {
	if path == "/" {
		return 0, 0
	}
	node, err := fs.Graph.GetNode(path)
	if err != nil {
		return -fuse.ENOENT, 0
	}
	if !node.Mode.IsDir() {
		return -fuse.ENOTDIR, 0
	}
	return 0, 0
}

// Getattr (Stat)
func (fs *TermFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	stat.Atim = fs.mountTime
	stat.Mtim = fs.mountTime
	stat.Ctim = fs.mountTime
	stat.Birthtim = fs.mountTime

	if path == "/" {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}

	node, err := fs.Graph.GetNode(path)
	if err != nil {
		return -fuse.ENOENT
	}
	if !node.ModTime.IsZero() {
		ts := fuse.NewTimespec(node.ModTime)
		stat.Mtim = ts
		stat.Ctim = ts
	}
	if node.Mode.IsDir() {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}
	stat.Mode = fuse.S_IFREG | 0o444
	stat.Nlink = 1
	stat.Size = node.ContentSize()
	return 0
}

// Readdir (List directory)
func (fs *TermFS) Readdir(dir string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	if dir != "/" {
		node, err := fs.Graph.GetNode(dir)
		if err != nil {
			return -fuse.ENOENT
		}
		if !node.Mode.IsDir() {
			return -fuse.ENOTDIR
		}
	}
	children, err := fs.Graph.ListChildren(dir)
	if err != nil {
		return -fuse.ENOENT
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, childID := range children {
		if !fill(path.Base(childID), nil, 0) {
			break
		}
	}
	return 0
}

// Read (Cat file)
func (fs *TermFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := fs.Graph.ReadContent(path, buff, ofst)
	if err != nil {
		return -fuse.ENOENT
	}
	return n
}

// Getxattr returns a user.termtree.* attribute of a term directory.
func (fs *TermFS) Getxattr(path string, name string) (int, []byte) {
	node, err := fs.Graph.GetNode(path)
	if err != nil {
		return -fuse.ENOENT, nil
	}
	value, ok := node.Properties[name]
	if !ok {
		return -fuse.ENOATTR, nil
	}
	return 0, value
}

// Listxattr lists attribute names in sorted order.
func (fs *TermFS) Listxattr(path string, fill func(name string) bool) int {
	node, err := fs.Graph.GetNode(path)
	if err != nil {
		return -fuse.ENOENT
	}
	names := make([]string, 0, len(node.Properties))
	for name := range node.Properties {
		names = append(names, name)
	}
	slices.SortFunc(names, strings.Compare)
	for _, name := range names {
		if !fill(name) {
			break
		}
	}
	return 0
}
