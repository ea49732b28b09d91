// Package rules defines the pluggable conversion rules and the ordered,
// first-match-wins chain the converter dispatches through.
package rules

import (
	"strings"

	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
)

// Recurse converts a subset of markup (usually el.Children) into document
// nodes. It is only valid for the duration of the rule call it was passed to.
type Recurse func(nodes []markup.Node) ([]doctree.Node, error)

// DeserializeFunc claims a markup element. ok=false means no match. A match
// with a nil node drops the element and everything under it.
type DeserializeFunc func(el *markup.Element, next Recurse) (n doctree.Node, ok bool, err error)

// SerializeFunc claims a document node given its already-serialized
// children. ok=false means no match. A match with a nil node emits nothing.
type SerializeFunc func(n doctree.Node, children []markup.Fragment) (m markup.Node, ok bool, err error)

// Rule pairs an optional deserializer with an optional serializer. Rules
// must not hold mutable state; one Rule is shared by every conversion.
type Rule struct {
	Name        string
	Deserialize DeserializeFunc
	Serialize   SerializeFunc
}

// BlockTag maps a Block type to an element tag in both directions.
func BlockTag(typ, tag string) Rule {
	return tagRule(doctree.KindBlock, typ, tag)
}

// MarkTag maps a Mark type to an element tag in both directions.
func MarkTag(typ, tag string) Rule {
	return tagRule(doctree.KindMark, typ, tag)
}

func tagRule(kind doctree.Kind, typ, tag string) Rule {
	return Rule{
		Name: typ + "<->" + tag,
		Deserialize: func(el *markup.Element, next Recurse) (doctree.Node, bool, error) {
			if el.Tag != tag {
				return nil, false, nil
			}
			children, err := next(el.Children)
			if err != nil {
				return nil, true, err
			}
			return build(kind, typ, children), true, nil
		},
		Serialize: func(n doctree.Node, children []markup.Fragment) (markup.Node, bool, error) {
			if n.Kind() != kind || doctree.TypeOf(n) != typ {
				return nil, false, nil
			}
			return markup.NewElement(tag, markup.Nodes(children)...), true, nil
		},
	}
}

// DeserializeOnly maps any of tags to a node of the given kind and type.
// It never serializes, so it is the way to accept legacy aliases such as
// <b> for bold while always writing <strong>.
func DeserializeOnly(typ string, kind doctree.Kind, tags ...string) Rule {
	set := tagSet(tags)
	return Rule{
		Name: typ + "<-" + joinTags(tags),
		Deserialize: func(el *markup.Element, next Recurse) (doctree.Node, bool, error) {
			if !set[el.Tag] {
				return nil, false, nil
			}
			children, err := next(el.Children)
			if err != nil {
				return nil, true, err
			}
			return build(kind, typ, children), true, nil
		},
	}
}

// Drop claims the given tags on the way in and discards them with their
// content.
func Drop(tags ...string) Rule {
	set := tagSet(tags)
	return Rule{
		Name: "drop " + joinTags(tags),
		Deserialize: func(el *markup.Element, _ Recurse) (doctree.Node, bool, error) {
			return nil, set[el.Tag], nil
		},
	}
}

func build(kind doctree.Kind, typ string, children []doctree.Node) doctree.Node {
	if kind == doctree.KindMark {
		return &doctree.Mark{Type: typ, Children: children}
	}
	return &doctree.Block{Type: typ, Children: children}
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}
