// Package convert turns markup trees into document trees and back by
// recursive descent through a rule chain. Elements and nodes no rule claims
// are flattened: the wrapper disappears and its children take its place.
//
// SerializeNodes followed by DeserializeNodes keeps the tree as is. Going
// through printed text does not: the HTML parser merges neighbouring text
// leaves, so two adjacent Text nodes come back as one.
package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/rules"
)

// ErrMaxDepth is returned when a tree nests deeper than the configured limit.
var ErrMaxDepth = errors.New("maximum nesting depth exceeded")

// Converter is immutable after New and safe for concurrent use, provided
// its rules are side-effect free.
type Converter struct {
	chain *rules.Chain
	opts  Options
}

// New builds a converter over an ordered rule list.
func New(rs []rules.Rule, opts ...Option) *Converter {
	return &Converter{
		chain: rules.NewChain(rs...),
		opts:  *applyOptions(opts...),
	}
}

// Chain returns the rule chain the converter dispatches through.
func (c *Converter) Chain() *rules.Chain {
	return c.chain
}

// MaxDepth returns the nesting limit, or 0 when unlimited.
func (c *Converter) MaxDepth() int {
	if c.opts.MaxDepth < 0 {
		return 0
	}
	return c.opts.MaxDepth
}

// Deserialize parses markup text with the configured parser and converts it.
func (c *Converter) Deserialize(text string) ([]doctree.Node, error) {
	tree, err := c.opts.Parse(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return c.DeserializeNodes(tree)
}

// DeserializeNodes converts an already-parsed markup tree. Several top-level
// results come back as an ordered sequence; an empty tree yields an empty
// sequence.
func (c *Converter) DeserializeNodes(tree []markup.Node) ([]doctree.Node, error) {
	d := deserializer{Converter: c}
	return d.nodes(tree, 0)
}

// Serialize converts document nodes and prints them with the configured
// printer.
func (c *Converter) Serialize(nodes ...doctree.Node) (string, error) {
	tree, err := c.SerializeNodes(nodes...)
	if err != nil {
		return "", err
	}
	return c.opts.Print(tree)
}

// SerializeNodes converts document nodes into a markup tree.
func (c *Converter) SerializeNodes(nodes ...doctree.Node) ([]markup.Node, error) {
	s := serializer{Converter: c}
	var frags []markup.Fragment
	for _, n := range nodes {
		out, err := s.node(n, 0)
		if err != nil {
			return nil, err
		}
		frags = append(frags, out...)
	}
	return markup.Nodes(frags), nil
}

// checkDepth fails once an element or document container sits MaxDepth
// levels below the root, so at most MaxDepth levels nest. Text leaves are
// not counted in either direction.
func (c *Converter) checkDepth(depth int) error {
	if c.opts.MaxDepth > 0 && depth >= c.opts.MaxDepth {
		return fmt.Errorf("%w (%d)", ErrMaxDepth, c.opts.MaxDepth)
	}
	return nil
}

func (c *Converter) fallback(dir Direction, name string, depth int) {
	c.opts.Logger.Debug("unclaimed, flattening", "direction", dir, "name", name, "depth", depth)
	if c.opts.Observer != nil {
		c.opts.Observer.Fallback(dir, name)
	}
}
