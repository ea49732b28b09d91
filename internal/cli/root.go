// Package cli implements the richconv command-line tool.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/parser"
	"github.com/dgallion1/richconv/internal/schema"
)

// NewRootCmd creates the root richconv command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "richconv",
		Short:         "richconv - convert between HTML and rich-text document nodes",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&opts.maxDepth, "max-depth", convert.DefaultMaxDepth, "Maximum nesting depth (0 disables the limit)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log fallbacks to stderr")

	root.AddCommand(newDeserializeCmd(opts))
	root.AddCommand(newSerializeCmd(opts))
	root.AddCommand(newRoundtripCmd(opts))
	return root
}

type rootOptions struct {
	maxDepth int
	verbose  bool
}

func (o *rootOptions) converter(cmd *cobra.Command) *convert.Converter {
	if !o.verbose {
		return schema.NewConverter(convert.WithMaxDepth(o.maxDepth))
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	conv := schema.NewConverter(convert.WithMaxDepth(o.maxDepth), convert.WithLogger(log))
	log.Debug("converter ready", "max_depth", conv.MaxDepth(), "rules", conv.Chain().Names())
	return conv
}

// readInput returns the named file's contents, or stdin when no file is
// given. The returned name is empty for stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("reading input: %w", err)
	}
	return data, args[0], nil
}

// deserializeInput converts input to nodes. An explicit --format wins; a
// named file picks its importer by extension; stdin defaults to an HTML
// fragment.
func deserializeInput(conv *convert.Converter, data []byte, name, format string) ([]doctree.Node, error) {
	format = strings.ToLower(format)
	if format == "html" || (format == "" && name == "") {
		return conv.Deserialize(string(data))
	}

	var p parser.Parser
	var err error
	if format != "" {
		p, err = parser.ForFormat(format)
	} else {
		p, err = parser.ForFile(name)
	}
	if err != nil {
		return nil, err
	}
	src, err := p.Parse(bytes.NewReader(data), filepath.Base(name))
	if err != nil {
		return nil, err
	}
	return conv.DeserializeNodes(src.Nodes)
}

// decodeNodes accepts either a bare node array or an object with a "nodes"
// field.
func decodeNodes(data []byte) ([]doctree.Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc struct {
			Nodes doctree.Nodes `json:"nodes"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Nodes, nil
	}
	return doctree.UnmarshalNodes(trimmed)
}

func writeHTML(cmd *cobra.Command, html string, minify bool) error {
	if minify {
		var err error
		if html, err = markup.Minify(html); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), html)
	return err
}
