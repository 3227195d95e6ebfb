// Package assets provides the tree-sitter query sources (locals, highlights,
// children, indents) for each language. Sources come from an fs.FS (usually
// the embedded bundle), a directory on disk, or a layered combination where
// the first provider holding an asset wins.
package assets

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Kind names one query asset of a language.
type Kind string

const (
	KindLocals     Kind = "locals"
	KindHighlights Kind = "highlights"
	KindChildren   Kind = "children"
	KindIndents    Kind = "indents"
)

// Kinds lists every asset kind in load order.
var Kinds = []Kind{KindLocals, KindHighlights, KindChildren, KindIndents}

// Provider returns the query source for a language and kind. A missing asset
// is reported with ok == false, never as an error.
type Provider interface {
	Source(language string, kind Kind) (string, bool)
}

// AssetPath returns the slash-separated path of an asset relative to a
// provider root: "<language>/<kind>.scm".
func AssetPath(language string, kind Kind) string {
	return path.Join(language, string(kind)+".scm")
}

type fsProvider struct {
	fsys fs.FS
}

// NewFSProvider returns a Provider reading "<language>/<kind>.scm" from fsys.
func NewFSProvider(fsys fs.FS) Provider {
	return &fsProvider{fsys: fsys}
}

func (p *fsProvider) Source(language string, kind Kind) (string, bool) {
	data, err := fs.ReadFile(p.fsys, AssetPath(language, kind))
	if err != nil {
		return "", false
	}
	return string(data), true
}

type dirProvider struct {
	dir string
}

// NewDirProvider returns a Provider reading assets from dir on disk. Files are
// read on every call, so edits are picked up without restarting.
func NewDirProvider(dir string) Provider {
	return &dirProvider{dir: dir}
}

func (p *dirProvider) Source(language string, kind Kind) (string, bool) {
	data, err := os.ReadFile(filepath.Join(p.dir, filepath.FromSlash(AssetPath(language, kind))))
	if err != nil {
		return "", false
	}
	return string(data), true
}

type layered []Provider

// Layered returns a Provider that consults providers in order and returns the
// first hit. Nil providers are skipped.
func Layered(providers ...Provider) Provider {
	var l layered
	for _, p := range providers {
		if p != nil {
			l = append(l, p)
		}
	}
	return l
}

func (l layered) Source(language string, kind Kind) (string, bool) {
	for _, p := range l {
		if src, ok := p.Source(language, kind); ok {
			return src, true
		}
	}
	return "", false
}
