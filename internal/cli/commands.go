package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/richconv/internal/doctree"
)

func newDeserializeCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:          "deserialize [file]",
		Short:        "Convert markup into JSON document nodes",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, name, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			nodes, err := deserializeInput(opts.converter(cmd), data, name, format)
			if err != nil {
				return fmt.Errorf("deserialize: %w", err)
			}
			out, err := json.MarshalIndent(doctree.Nodes(nodes), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format: html, markdown, xml, text, csv, pdf, docx")
	return cmd
}

func newSerializeCmd(opts *rootOptions) *cobra.Command {
	var minify bool
	cmd := &cobra.Command{
		Use:          "serialize [file]",
		Short:        "Convert JSON document nodes into HTML",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			nodes, err := decodeNodes(data)
			if err != nil {
				return fmt.Errorf("reading nodes: %w", err)
			}
			html, err := opts.converter(cmd).Serialize(nodes...)
			if err != nil {
				return fmt.Errorf("serialize: %w", err)
			}
			return writeHTML(cmd, html, minify)
		},
	}
	cmd.Flags().BoolVar(&minify, "minify", false, "Minify the HTML output")
	return cmd
}

func newRoundtripCmd(opts *rootOptions) *cobra.Command {
	var format string
	var minify bool
	cmd := &cobra.Command{
		Use:          "roundtrip [file]",
		Short:        "Print the canonical HTML of an input",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, name, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			conv := opts.converter(cmd)
			nodes, err := deserializeInput(conv, data, name, format)
			if err != nil {
				return fmt.Errorf("deserialize: %w", err)
			}
			html, err := conv.Serialize(nodes...)
			if err != nil {
				return fmt.Errorf("serialize: %w", err)
			}
			return writeHTML(cmd, html, minify)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format: html, markdown, xml, text, csv, pdf, docx")
	cmd.Flags().BoolVar(&minify, "minify", false, "Minify the HTML output")
	return cmd
}
