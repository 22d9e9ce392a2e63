package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hpackcodec/internal/helper"
	"hpackcodec/internal/stats"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var perBlock bool

	cmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Compare HPACK sizes with raw headers and general purpose compressors",
		Long: `Encode header lists and report the HPACK size next to the HTTP/1.1 text size
and the size of that text compressed with deflate, gzip and zstd.`,
		Example: `  hpackcodec stats headers.txt
  hpackcodec stats headers.txt --huffman never --blocks`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "codec",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd)
			if err != nil {
				return err
			}

			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			blocks, err := helper.ParseHeaderBlocks(in)
			if err != nil {
				return err
			}

			report, err := stats.Measure(s.newEncoder(), blocks)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if perBlock {
				fmt.Fprintf(out, "%-6s %6s %8s %8s\n", "BLOCK", "FIELDS", "RAW", "HPACK")
				for i, b := range report.Blocks {
					fmt.Fprintf(out, "%-6d %6d %8d %8d\n", i+1, b.Fields, b.Raw, b.Encoded)
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "blocks:  %d\n", len(report.Blocks))
			fmt.Fprintf(out, "raw:     %d octets\n", report.Raw)
			fmt.Fprintf(out, "hpack:   %d octets (%.1f%%, huffman %s, table %d)\n",
				report.Encoded, 100*report.Ratio(), s.cfg.HuffmanChoice(), s.cfg.Codec.MaxTableSize)
			for _, b := range report.Baselines {
				fmt.Fprintf(out, "%-8s %d octets\n", b.Name+":", b.Size)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&perBlock, "blocks", false, "print sizes for every block")
	return cmd
}
