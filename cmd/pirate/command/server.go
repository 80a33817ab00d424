package command

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pirate-rpc/cmd/pirate/rpcs"
	"pirate-rpc/codec"
	"pirate-rpc/config"
	"pirate-rpc/middleware"
	"pirate-rpc/operation"
	"pirate-rpc/server"
)

const shutdownTimeout = 3 * time.Second

func newServerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			done := make(chan struct{})
			defer close(done)
			stop := make(chan struct{})
			go func() {
				select {
				case sig := <-quit:
					level.Info(opts.logger).Log("msg", "shutting down", "signal", sig)
					close(stop)
				case <-done:
				}
			}()
			return runServer(opts.cfg, opts.logger, nil, stop)
		},
	}
	cmd.Flags().Bool(config.KeySequential, false, "finish each connection before accepting the next")
	cmd.Flags().Duration(config.KeyReadTimeout, 0, "drop connections that send no request within this time (0 waits forever)")
	cmd.Flags().Float64(config.KeyRateLimit, 0, "calls per second (0 disables rate limiting)")
	cmd.Flags().Int(config.KeyRateBurst, 1, "rate limiter burst size")
	cmd.Flags().String(config.KeyMetricsAddress, "", "serve prometheus metrics on this address")
	opts.bindFlags(cmd, config.KeySequential, config.KeyReadTimeout, config.KeyRateLimit, config.KeyRateBurst, config.KeyMetricsAddress)
	return cmd
}

// runServer serves rpcs on cfg.Address until stop is closed. If listener is
// nil the address is bound here; a bind failure is returned at once.
func runServer(cfg *config.Config, logger log.Logger, listener net.Listener, stop <-chan struct{}) error {
	ct, err := cfg.CodecType()
	if err != nil {
		return err
	}
	framing, err := cfg.TransportFraming()
	if err != nil {
		return err
	}

	state := operation.NewState(rpcs.State{})
	svr := server.NewServer[rpcs.ID](state,
		server.WithCodec(codec.GetCodec(ct)),
		server.WithLogger(logger),
		server.WithFraming(framing),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithSequential(cfg.Sequential),
	)
	rpcs.Register(svr)
	svr.Use(middleware.LoggingMiddleware[rpcs.ID](log.With(logger, "component", "rpc")))
	if cfg.RateLimit > 0 {
		svr.Use(middleware.RateLimitMiddleware[rpcs.ID](cfg.RateLimit, cfg.RateBurst))
	}

	if listener == nil {
		listener, err = net.Listen("tcp", cfg.Address)
		if err != nil {
			return errors.Wrapf(err, "listen on %s", cfg.Address)
		}
	}

	errc := make(chan error, 2)

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		svr.Use(middleware.MetricsMiddleware[rpcs.ID]())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			logger := log.With(logger, "transport", "HTTP")
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- errors.Wrap(err, "metrics server")
			}
		}()
	}

	go func() {
		errc <- svr.ServeListener(listener)
	}()

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-stop:
	}

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		metricsSrv.Shutdown(ctx)
	}
	if err := svr.Shutdown(shutdownTimeout); err != nil {
		level.Warn(logger).Log("msg", "shutdown", "err", err)
	}
	return serveErr
}
