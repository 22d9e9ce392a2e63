package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hpackcodec/internal/logging"
	"hpackcodec/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port, h2cPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HPACK inspection service",
		Long: `Serve codec sessions over a JSON API:

  POST   /sessions               create an encoder/decoder pair
  POST   /sessions/{id}/encode   encode a header list
  POST   /sessions/{id}/decode   decode a hex header block
  GET    /sessions/{id}/table    show both dynamic tables
  DELETE /sessions/{id}          drop the session

With --h2c-port, cleartext HTTP/2 connections are accepted as well and every
request is answered with its headers echoed back.`,
		Example: `  hpackcodec serve --port 8080
  hpackcodec serve --config hpack.yaml --h2c-port 8443`,
		Args:    cobra.NoArgs,
		GroupID: "service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				s.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("h2c-port") {
				s.cfg.Server.H2CPort = h2cPort
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			var logger logging.Logger = s.logger
			if s.cfg.Logger.File != "" {
				fileLogger, err := logging.NewDefaultLogger(s.cfg.LogLevel(), s.cfg.Logger.File)
				if err != nil {
					return err
				}
				defer fileLogger.Close()
				logger = fileLogger
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(s.cfg, logger).Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port of the JSON API")
	cmd.Flags().IntVar(&h2cPort, "h2c-port", 0, "port for cleartext HTTP/2 echo connections, 0 disables")
	return cmd
}
