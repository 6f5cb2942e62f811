package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolparser/pkg/adapter"
)

func newParseCmd(load configLoader) *cobra.Command {
	var (
		openai  bool
		flatten bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse tool calls from a complete model response",
		Long: `Parse a complete model response read from file, or stdin when no
file is given, and print the tool calls as JSON.

By default calls are printed in tagged form. With --openai they are printed
as OpenAI chat completion tool calls.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			parser, err := newParser(cfg)
			if err != nil {
				return err
			}

			var out any
			count := 0
			if openai {
				info := adapter.NewExtractor(parser, flatten, cfg.Debug).ExtractToolCalls(text)
				out, count = info, len(info.ToolCalls)
			} else {
				calls := parser.Parse(text)
				out, count = calls, len(calls)
			}

			if count == 0 {
				_, _ = color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "No tool calls found")
			}
			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().BoolVar(&openai, "openai", false, "Print OpenAI tool_calls instead of tagged calls")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "Collapse single-entry objects in OpenAI arguments")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
