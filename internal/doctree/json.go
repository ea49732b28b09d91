package doctree

import (
	"encoding/json"
	"fmt"
)

// wireNode is the JSON form shared by the API, the CLI and batch jobs.
type wireNode struct {
	Object string     `json:"object"`
	Type   string     `json:"type,omitempty"`
	Text   *string    `json:"text,omitempty"`
	Nodes  []wireNode `json:"nodes,omitempty"`
}

// Nodes is a node sequence that encodes to and from the wire form.
type Nodes []Node

func (ns Nodes) MarshalJSON() ([]byte, error) {
	return MarshalNodes(ns)
}

func (ns *Nodes) UnmarshalJSON(data []byte) error {
	nodes, err := UnmarshalNodes(data)
	if err != nil {
		return err
	}
	*ns = nodes
	return nil
}

// MarshalNodes encodes a node sequence. A nil sequence encodes as [].
func MarshalNodes(nodes []Node) ([]byte, error) {
	wire, err := toWire(nodes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalNodes decodes a node sequence.
func UnmarshalNodes(data []byte) ([]Node, error) {
	var wire []wireNode
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return fromWire(wire, "nodes")
}

func toWire(nodes []Node) ([]wireNode, error) {
	out := make([]wireNode, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case *Text:
			v := n.Value
			out = append(out, wireNode{Object: "text", Text: &v})
		case *Block:
			children, err := toWire(n.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, wireNode{Object: "block", Type: n.Type, Nodes: children})
		case *Mark:
			children, err := toWire(n.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, wireNode{Object: "mark", Type: n.Type, Nodes: children})
		default:
			return nil, fmt.Errorf("encode nodes: unexpected node %T", n)
		}
	}
	return out, nil
}

func fromWire(wire []wireNode, path string) ([]Node, error) {
	out := make([]Node, 0, len(wire))
	for i, w := range wire {
		at := fmt.Sprintf("%s[%d]", path, i)
		switch w.Object {
		case "text":
			if len(w.Nodes) > 0 {
				return nil, fmt.Errorf("decode nodes: %s: text node has children", at)
			}
			var v string
			if w.Text != nil {
				v = *w.Text
			}
			out = append(out, &Text{Value: v})
		case "block", "mark":
			if w.Type == "" {
				return nil, fmt.Errorf("decode nodes: %s: %s without type", at, w.Object)
			}
			children, err := fromWire(w.Nodes, at+".nodes")
			if err != nil {
				return nil, err
			}
			if w.Object == "block" {
				out = append(out, &Block{Type: w.Type, Children: children})
			} else {
				out = append(out, &Mark{Type: w.Type, Children: children})
			}
		default:
			return nil, fmt.Errorf("decode nodes: %s: unknown object %q", at, w.Object)
		}
	}
	return out, nil
}
