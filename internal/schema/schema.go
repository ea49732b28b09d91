// Package schema is the rich-text rule set the service ships with:
// paragraphs, quotes, code blocks, headings, lists and the usual inline
// marks. The converter knows nothing about these types; they exist only as
// rules.
package schema

import (
	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/rules"
)

// Block types.
const (
	Paragraph    = "paragraph"
	Quote        = "quote"
	Code         = "code"
	BulletedList = "bulleted-list"
	NumberedList = "numbered-list"
	ListItem     = "list-item"
)

// Mark types.
const (
	Bold          = "bold"
	Italic        = "italic"
	Underline     = "underline"
	Strikethrough = "strikethrough"
	InlineCode    = "inline-code"
)

// Headings maps h1..h6 to their block types.
var Headings = []struct{ Tag, Type string }{
	{"h1", "heading-one"},
	{"h2", "heading-two"},
	{"h3", "heading-three"},
	{"h4", "heading-four"},
	{"h5", "heading-five"},
	{"h6", "heading-six"},
}

// Rules returns the ordered rule list. Each call returns a fresh slice.
func Rules() []rules.Rule {
	rs := []rules.Rule{
		rules.Drop("script", "style", "template", "noscript"),
		codeBlock(),
		rules.BlockTag(Paragraph, "p"),
		rules.BlockTag(Quote, "blockquote"),
	}
	for _, h := range Headings {
		rs = append(rs, rules.BlockTag(h.Type, h.Tag))
	}
	rs = append(rs,
		rules.BlockTag(BulletedList, "ul"),
		rules.BlockTag(NumberedList, "ol"),
		rules.BlockTag(ListItem, "li"),
		rules.MarkTag(Bold, "strong"),
		rules.DeserializeOnly(Bold, doctree.KindMark, "b"),
		rules.MarkTag(Italic, "em"),
		rules.DeserializeOnly(Italic, doctree.KindMark, "i"),
		rules.MarkTag(Underline, "u"),
		rules.MarkTag(Strikethrough, "s"),
		rules.DeserializeOnly(Strikethrough, doctree.KindMark, "del", "strike"),
		rules.MarkTag(InlineCode, "code"),
		lineBreak(),
	)
	return rs
}

// NewConverter builds a converter over Rules.
func NewConverter(opts ...convert.Option) *convert.Converter {
	return convert.New(Rules(), opts...)
}

// codeBlock maps Block{code} to <pre><code>...</code></pre>. A bare <pre>
// without an inner <code> is accepted too.
func codeBlock() rules.Rule {
	return rules.Rule{
		Name: Code + "<->pre>code",
		Deserialize: func(el *markup.Element, next rules.Recurse) (doctree.Node, bool, error) {
			if el.Tag != "pre" {
				return nil, false, nil
			}
			content := el.Children
			if inner := el.FirstElement(); inner != nil && inner.Tag == "code" {
				content = inner.Children
			}
			children, err := next(content)
			if err != nil {
				return nil, true, err
			}
			return &doctree.Block{Type: Code, Children: children}, true, nil
		},
		Serialize: func(n doctree.Node, children []markup.Fragment) (markup.Node, bool, error) {
			if n.Kind() != doctree.KindBlock || doctree.TypeOf(n) != Code {
				return nil, false, nil
			}
			return markup.NewElement("pre", markup.NewElement("code", markup.Nodes(children)...)), true, nil
		},
	}
}

// lineBreak reads <br> as a newline. Newlines are written back as text, so
// this one is one-way.
func lineBreak() rules.Rule {
	return rules.Rule{
		Name: "br->text",
		Deserialize: func(el *markup.Element, _ rules.Recurse) (doctree.Node, bool, error) {
			if el.Tag != "br" {
				return nil, false, nil
			}
			return &doctree.Text{Value: "\n"}, true, nil
		},
	}
}
