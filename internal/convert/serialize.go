package convert

import (
	"fmt"

	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
)

type serializer struct {
	*Converter
}

// node serializes children first, then offers the node to the chain.
// Unclaimed Text becomes raw text; unclaimed Block and Mark nodes are
// unwrapped into their children's fragments.
func (s serializer) node(n doctree.Node, depth int) ([]markup.Fragment, error) {
	if n == nil {
		return nil, nil
	}
	if _, leaf := n.(*doctree.Text); !leaf {
		if err := s.checkDepth(depth); err != nil {
			return nil, err
		}
	}

	var children []markup.Fragment
	for _, c := range doctree.ChildrenOf(n) {
		out, err := s.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, out...)
	}

	m, ok, err := s.chain.Serialize(n, children)
	if err != nil {
		return nil, err
	}
	if ok {
		if m == nil {
			return nil, nil
		}
		return []markup.Fragment{markup.Markup(m)}, nil
	}

	switch n := n.(type) {
	case *doctree.Text:
		return []markup.Fragment{markup.RawText(n.Value)}, nil
	case *doctree.Block, *doctree.Mark:
		s.fallback(Serializing, fmt.Sprintf("%s:%s", n.Kind(), doctree.TypeOf(n)), depth)
		return children, nil
	}
	return nil, fmt.Errorf("serialize: unexpected node %T", n)
}
