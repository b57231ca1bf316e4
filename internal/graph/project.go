package graph

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agentic-research/termtree/internal/taxonomy"
)

const (
	// TreeFile is the root file holding the whole tree as JSON.
	TreeFile = "_tree.json"

	termFile        = "term.json"
	nameFile        = "name"
	descriptionFile = "description"

	maxSlugLen = 48
)

// Extended attribute names set on term directories.
const (
	XattrID         = "user.termtree.id"
	XattrVocabulary = "user.termtree.vocabulary"
	XattrWeight     = "user.termtree.weight"
)

// termDoc is the content of term.json.
type termDoc struct {
	ID          string            `json:"id"`
	Vocabulary  string            `json:"vocabulary"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Weight      float64           `json:"weight"`
	Parents     []string          `json:"parents,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Children    []string          `json:"children"`
}

// Project lays tree out as a directory hierarchy:
//
//	_tree.json
//	<slug>-<id>/term.json
//	<slug>-<id>/name
//	<slug>-<id>/description      (only when set)
//	<slug>-<id>/<child dirs...>
//
// Sibling directories keep the tree order. A term with several parents
// appears once under each of them.
func Project(vocabulary string, tree *taxonomy.Tree, modTime time.Time) (*MemoryStore, error) {
	store := NewMemoryStore()

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	store.AddRoot(&Node{
		ID:      TreeFile,
		Mode:    0o444,
		ModTime: modTime,
		Data:    append(data, '\n'),
	})

	for _, n := range tree.Nodes() {
		id, err := projectNode(store, vocabulary, "", n, modTime)
		if err != nil {
			return nil, err
		}
		root, _ := store.GetNode(id)
		store.AddRoot(root)
	}
	return store, nil
}

// projectNode adds the directory for n under dir and returns its id.
func projectNode(store *MemoryStore, vocabulary, dir string, n *taxonomy.TermNode, modTime time.Time) (string, error) {
	id := path.Join(dir, DirName(n.ID, n.Name))
	node := &Node{
		ID:      id,
		Mode:    fs.ModeDir | 0o555,
		ModTime: modTime,
		Properties: map[string][]byte{
			XattrID:         []byte(n.ID),
			XattrVocabulary: []byte(vocabulary),
			XattrWeight:     []byte(strconv.FormatFloat(n.Weight, 'g', -1, 64)),
		},
	}

	children := n.Children.Nodes()
	doc := termDoc{
		ID:          n.ID,
		Vocabulary:  vocabulary,
		Name:        n.Name,
		Description: n.Description,
		Weight:      n.Weight,
		Parents:     n.Parents,
		Attributes:  n.Attributes,
		Children:    make([]string, 0, len(children)),
	}
	for _, c := range children {
		doc.Children = append(doc.Children, c.ID)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode term %q: %w", n.ID, err)
	}

	addFile := func(name string, content []byte) {
		fileID := path.Join(id, name)
		store.AddNode(&Node{ID: fileID, Mode: 0o444, ModTime: modTime, Data: content})
		node.Children = append(node.Children, fileID)
	}
	addFile(termFile, append(data, '\n'))
	addFile(nameFile, []byte(n.Name+"\n"))
	if n.Description != "" {
		addFile(descriptionFile, []byte(n.Description+"\n"))
	}

	for _, c := range children {
		childID, err := projectNode(store, vocabulary, id, c, modTime)
		if err != nil {
			return "", err
		}
		node.Children = append(node.Children, childID)
	}
	store.AddNode(node)
	return id, nil
}

// DirName returns "<slug>-<id>" for a term.
func DirName(id, name string) string {
	return Slug(name) + "-" + sanitizeID(id)
}

// Slug lowercases name and collapses every run of other characters than
// letters and digits into a single hyphen. An empty result becomes "term".
func Slug(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
			if b.Len() >= maxSlugLen {
				break
			}
			continue
		}
		hyphen = true
	}
	if b.Len() == 0 {
		return "term"
	}
	return b.String()
}

// sanitizeID keeps path separators out of directory names.
func sanitizeID(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}
