package parser

import (
	"fmt"
	"os"
	"time"

	"klepto/internal/core/errors"
	"klepto/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Unit is one parsed source file. It is immutable once returned and owns its
// tree; call Close when the unit has been extracted.
type Unit struct {
	Path     string
	Modified time.Time
	Source   []byte
	Tree     *sitter.Tree
	// NoStd is set when the file carries a #![no_std] inner attribute.
	NoStd bool
}

func (u *Unit) Root() *sitter.Node {
	if u == nil || u.Tree == nil {
		return nil
	}
	return u.Tree.RootNode()
}

func (u *Unit) Close() {
	if u != nil && u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

type Parser struct {
	loader *GrammarLoader
	pool   *ParserPool
}

func NewParser(loader *GrammarLoader) (*Parser, error) {
	lang, err := loader.Language(LanguageRust)
	if err != nil {
		return nil, err
	}
	return &Parser{loader: loader, pool: NewParserPool(lang)}, nil
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.loader.LanguageForPath(path) != ""
}

// ParseFile reads and parses path. A file larger than maxSize (when > 0) is
// skipped: the returned unit is nil and so is the error.
func (p *Parser) ParseFile(path string, modified time.Time, maxSize int64) (*Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapPath(err, errors.CodeIO, "stat source file", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapPath(err, errors.CodeIO, "read source file", path)
	}
	if modified.IsZero() {
		modified = info.ModTime()
	}
	return p.ParseSource(path, modified, content)
}

// ParseSource parses content. Trees containing syntax errors are rejected
// with CodeParse so callers can choose to skip or abort.
func (p *Parser) ParseSource(path string, modified time.Time, content []byte) (*Unit, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(LanguageRust).Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.WrapPath(fmt.Errorf("parser returned no tree"), errors.CodeParse, "parse failed", path)
	}
	root := tree.RootNode()
	if root.HasError() {
		pos := firstErrorPosition(root)
		tree.Close()
		return nil, errors.WrapPath(
			fmt.Errorf("syntax error near line %d column %d", pos.Row+1, pos.Column+1),
			errors.CodeParse, "parse failed", path,
		)
	}

	return &Unit{
		Path:     path,
		Modified: modified,
		Source:   content,
		Tree:     tree,
		NoStd:    DetectNoStd(root, content),
	}, nil
}

// DetectNoStd reports whether the file root carries #![no_std].
func DetectNoStd(root *sitter.Node, source []byte) bool {
	if root == nil {
		return false
	}
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil || child.Kind() != "inner_attribute_item" {
			continue
		}
		attr := ChildOfKind(child, "attribute")
		if attr == nil || attr.NamedChildCount() == 0 {
			continue
		}
		path := attr.NamedChild(0)
		if string(source[path.StartByte():path.EndByte()]) == "no_std" {
			return true
		}
	}
	return false
}

func firstErrorPosition(node *sitter.Node) sitter.Point {
	if node.IsError() || node.IsMissing() {
		return node.StartPosition()
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.HasError() {
			return firstErrorPosition(child)
		}
	}
	return node.StartPosition()
}
