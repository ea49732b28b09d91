package convert

import (
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
)

type deserializer struct {
	*Converter
}

// nodes converts a sibling list. Unclaimed elements contribute their own
// converted children in place.
func (d deserializer) nodes(tree []markup.Node, depth int) ([]doctree.Node, error) {
	out := make([]doctree.Node, 0, len(tree))
	for _, m := range tree {
		switch m := m.(type) {
		case *markup.Text:
			out = append(out, &doctree.Text{Value: m.Value})
		case *markup.Element:
			converted, err := d.element(m, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, converted...)
		}
	}
	return out, nil
}

func (d deserializer) element(el *markup.Element, depth int) ([]doctree.Node, error) {
	if err := d.checkDepth(depth); err != nil {
		return nil, err
	}
	next := func(children []markup.Node) ([]doctree.Node, error) {
		return d.nodes(children, depth+1)
	}
	n, ok, err := d.chain.Deserialize(el, next)
	if err != nil {
		return nil, err
	}
	if ok {
		if n == nil {
			return nil, nil
		}
		return []doctree.Node{n}, nil
	}
	d.fallback(Deserializing, el.Tag, depth)
	return d.nodes(el.Children, depth+1)
}
