package rules

import (
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
)

// Chain is an ordered rule list. The first rule whose function reports a
// match wins; order is fixed at construction.
type Chain struct {
	rules []Rule
}

// NewChain copies rules into a new chain.
func NewChain(rules ...Rule) *Chain {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Chain{rules: cp}
}

// Deserialize offers el to each rule with a deserializer, in order. ok is
// false when no rule claims it. A rule error is returned as-is.
func (c *Chain) Deserialize(el *markup.Element, next Recurse) (doctree.Node, bool, error) {
	for _, r := range c.rules {
		if r.Deserialize == nil {
			continue
		}
		n, ok, err := r.Deserialize(el, next)
		if err != nil {
			return nil, true, err
		}
		if ok {
			return n, true, nil
		}
	}
	return nil, false, nil
}

// Serialize offers n and its serialized children to each rule with a
// serializer, in order.
func (c *Chain) Serialize(n doctree.Node, children []markup.Fragment) (markup.Node, bool, error) {
	for _, r := range c.rules {
		if r.Serialize == nil {
			continue
		}
		m, ok, err := r.Serialize(n, children)
		if err != nil {
			return nil, true, err
		}
		if ok {
			return m, true, nil
		}
	}
	return nil, false, nil
}

// Len returns the number of rules.
func (c *Chain) Len() int {
	return len(c.rules)
}

// Names lists rule names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}
