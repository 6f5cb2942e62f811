package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// streamEvent is one output line of the stream command
type streamEvent struct {
	Chunk *int                `json:"chunk,omitempty"`
	Final bool                `json:"final,omitempty"`
	Calls []toolcall.ToolCall `json:"calls"`
	Total int                 `json:"total"`
}

func newStreamCmd(load configLoader) *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "stream [file]",
		Short: "Replay a model response through the incremental parser",
		Long: `Feed a model response to the incremental parser in pieces of
--chunk-size characters, printing one JSON line for every chunk that
completes calls and a final line after the stream ends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunkSize < 1 {
				return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			p := pythonic.NewIncrementalParser(cfg.ParserOptions())
			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, chunk := range splitRunes(text, chunkSize) {
				calls, err := p.ParseChunk(chunk)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				if len(calls) == 0 {
					continue
				}
				index := i
				if err := enc.Encode(streamEvent{Chunk: &index, Calls: calls, Total: len(p.ParsedFunctions())}); err != nil {
					return err
				}
			}

			final := p.Finish()
			total := len(p.ParsedFunctions())
			if total == 0 {
				_, _ = color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "No tool calls found")
			}
			return enc.Encode(streamEvent{Final: true, Calls: final, Total: total})
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 8, "Characters per chunk")
	return cmd
}

// splitRunes cuts s into pieces of size runes so every piece is valid UTF-8
func splitRunes(s string, size int) []string {
	runes := []rune(s)
	out := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		out = append(out, string(runes[i:min(i+size, len(runes))]))
	}
	return out
}
