package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hpackcodec/internal/helper"
	"hpackcodec/internal/http2/headers"
	"hpackcodec/internal/http2/settings"
	"hpackcodec/internal/logging"
)

// readOnly feeds a captured frame stream to a Conn; anything the Conn
// would send back is dropped.
type readOnly struct {
	io.Reader
}

func (readOnly) Write(p []byte) (int, error) {
	return len(p), nil
}

func newFramesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "frames [file]",
		Short: "Decode the header blocks of one direction of an HTTP/2 connection",
		Long: `Read raw HTTP/2 frames, as sent by one peer, and print every header block.
A leading client connection preface is skipped. SETTINGS frames are applied,
CONTINUATION frames are joined and all other frames are ignored.`,
		Example: `  hpackcodec frames client-to-server.bin
  hpackcodec frames --max-table-size 256 < server-to-client.bin`,
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

			r := bufio.NewReader(in)
			if preface, err := r.Peek(len(settings.ConnectionPreface)); err == nil &&
				bytes.Equal(preface, []byte(settings.ConnectionPreface)) {
				_, _ = r.Discard(len(preface))
				s.logger.Log(logging.LogLevelDebug, "skipped client connection preface")
			}

			conn := headers.NewConn(readOnly{r}, headers.Options{
				MaxTableSize:    s.cfg.Codec.MaxTableSize,
				MaxFrameSize:    s.cfg.HTTP2.MaxFrameSize,
				MaxStringLength: s.cfg.Codec.MaxStringLength,
				Logger:          s.logger,
			})

			out := cmd.OutOrStdout()
			for n := 0; ; n++ {
				block, err := conn.ReadBlock()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				if n > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "# stream %d", block.StreamID)
				if block.EndStream {
					fmt.Fprint(out, " (end stream)")
				}
				fmt.Fprintln(out)
				if err := helper.FormatHeaderBlock(out, block.Fields); err != nil {
					return err
				}
			}
		},
	}
}
