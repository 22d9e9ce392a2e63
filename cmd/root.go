// Package cmd provides the hpackcodec command line using Cobra.
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"hpackcodec/internal/config"
	"hpackcodec/internal/hpack"
	"hpackcodec/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile   string
	maxTableSize uint32
	huffman      string
	logLevel     string
}

// loaded is the configuration after flags were applied on top of the file.
type loaded struct {
	cfg    *config.Config
	logger *logging.DefaultLogger
}

func (s *loaded) newEncoder() *hpack.Encoder {
	return hpack.NewEncoder(s.cfg.Codec.MaxTableSize, hpack.WithHuffman(s.cfg.HuffmanChoice()))
}

func (s *loaded) newDecoder() *hpack.Decoder {
	dec := hpack.NewDecoder(s.cfg.Codec.MaxTableSize)
	dec.SetMaxStringLength(s.cfg.Codec.MaxStringLength)
	return dec
}

func (o *globalOptions) load(cmd *cobra.Command) (*loaded, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("max-table-size") {
		cfg.Codec.MaxTableSize = o.maxTableSize
	}
	if flags.Changed("huffman") {
		cfg.Codec.Huffman = o.huffman
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// diagnostics go to stderr so command output stays clean
	logger := logging.NewLogger(cfg.LogLevel(), cmd.ErrOrStderr())
	return &loaded{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hpackcodec",
		Short: "HPACK header compression for HTTP/2",
		Long: `hpackcodec encodes and decodes HTTP/2 header blocks (RFC 7541).

Header lists are written one "name: value" per line. A leading '!' marks a
field as never indexed and a blank line starts the next header block.

Examples:
  hpackcodec encode headers.txt                  # Print each block as hex
  hpackcodec decode blocks.hex --table           # Decode hex blocks, show the table
  hpackcodec stats headers.txt --huffman auto    # Compare against raw and zstd
  hpackcodec frames capture.bin                  # Decode header blocks from HTTP/2 frames
  hpackcodec serve --config hpack.yaml           # Run the inspection service`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "codec", Title: "Codec Commands:"},
		&cobra.Group{ID: "service", Title: "Service Commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	pf.Uint32Var(&opts.maxTableSize, "max-table-size", config.DefaultMaxTableSize, "maximum dynamic table size in octets")
	pf.StringVar(&opts.huffman, "huffman", hpack.HuffmanAlways.String(), "Huffman coding of strings: always, auto, never")
	pf.StringVar(&opts.logLevel, "log-level", string(logging.LogLevelInfo), "log level: debug, info, warn, error")

	rootCmd.AddCommand(newEncodeCmd(opts))
	rootCmd.AddCommand(newDecodeCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newFramesCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// openInput returns the file named by args[0], or stdin without arguments.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[0])
}
