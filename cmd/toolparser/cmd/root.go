package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolparser/pkg/config"
	"github.com/efortin/vllm-toolparser/pkg/pythonic"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records build information injected through ldflags
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "toolparser",
		Short: "Extract pythonic tool calls from LLM output",
		Long: `toolparser extracts function calls written in Python call syntax,
such as [get_weather(city="Tokyo")], from language model output.

It parses complete responses, streams chunked output through an
incremental parser, and serves both over HTTP.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	def := config.Default()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./toolparser.yaml when present)")
	flags.String("engine", def.Engine, "Grammar engine: primary or alternate")
	flags.String("start-marker", def.StartMarker, "Region start marker")
	flags.String("end-marker", def.EndMarker, "Region end marker")
	flags.Int("max-depth", def.MaxDepth, "Maximum nesting depth inside a region")
	flags.Int("promotion-depth", def.PromotionDepth, "Deepest region-level list whose calls are promoted (0 = unlimited)")
	flags.Bool("disable-fallback", def.DisableFallback, "Disable the heuristic fallback parser")
	flags.Int("trim-threshold", def.TrimThreshold, "Committed bytes an incremental parser keeps before trimming")
	flags.Bool("debug", def.Debug, "Enable debug logging")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(cfgFile, cmd.Flags())
	}

	root.AddCommand(
		newParseCmd(load),
		newStreamCmd(load),
		newServeCmd(load),
		newVersionCmd(),
	)
	return root
}

type configLoader func(cmd *cobra.Command) (*config.Config, error)

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func newParser(cfg *config.Config) (*pythonic.Parser, error) {
	return pythonic.NewParser(cfg.ParserOptions())
}

// readInput reads the file named by args, or stdin when there is none
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
