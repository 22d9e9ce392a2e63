package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hpackcodec/internal/helper"
	"hpackcodec/internal/hpack"
	"hpackcodec/internal/logging"
)

func newEncodeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode header lists into HPACK blocks",
		Long: `Read header lists and print every encoded header block as one line of hex.
All blocks share one encoder, so later blocks refer to entries added by earlier ones.`,
		Example: `  hpackcodec encode headers.txt
  printf ':method: GET\n:path: /\n' | hpackcodec encode --huffman never`,
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

			enc := s.newEncoder()
			out := cmd.OutOrStdout()
			for i, fields := range blocks {
				block, err := enc.Encode(fields)
				if err != nil {
					return fmt.Errorf("block %d: %w", i+1, err)
				}
				s.logger.Log(logging.LogLevelDebug, "block %d: %d fields, %d octets, table size %d",
					i+1, len(fields), len(block), enc.Table().Size())
				if _, err := fmt.Fprintln(out, hex.EncodeToString(block)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newDecodeCmd(opts *globalOptions) *cobra.Command {
	var showTable bool

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode hex HPACK blocks into header lists",
		Long: `Read one hex encoded header block per line and print the decoded header lists,
separated by blank lines. All blocks share one decoder.`,
		Example: `  hpackcodec decode blocks.hex
  echo 828684418cf1e3c2e5f23a6ba0ab90f4ff | hpackcodec decode --table`,
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

			blocks, err := helper.ParseHexBlocks(in)
			if err != nil {
				return err
			}

			dec := s.newDecoder()
			out := cmd.OutOrStdout()
			for i, block := range blocks {
				fields, err := dec.Decode(block)
				if err != nil {
					return fmt.Errorf("block %d: %w", i+1, err)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := helper.FormatHeaderBlock(out, fields); err != nil {
					return err
				}
				if showTable {
					printTable(out, dec.Table())
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTable, "table", false, "print the dynamic table after every block")
	return cmd
}

func printTable(w io.Writer, t *hpack.Table) {
	fmt.Fprintf(w, "# dynamic table: %d entries, size %d/%d\n", t.DynamicLen(), t.Size(), t.MaxSize())
	for i, e := range t.Entries() {
		fmt.Fprintf(w, "# [%3d] (s = %3d) %s: %s\n", hpack.StaticTableLen+1+i, e.TotalSize, e.Name, e.Value)
	}
}
