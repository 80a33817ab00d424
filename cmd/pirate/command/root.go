package command

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pirate-rpc/client"
	"pirate-rpc/codec"
	"pirate-rpc/config"
)

// rootOptions is shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE before any subcommand runs.
type rootOptions struct {
	v          *viper.Viper
	configFile string

	cfg    *config.Config
	logger log.Logger
}

// NewRootCommand builds the pirate command tree. versionMsg is printed by
// `pirate version`.
func NewRootCommand(versionMsg string) *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "pirate",
		Short:         "A minimal RPC server and client for a shared list of names",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "explicit assign a configuration file")
	flags.StringP(config.KeyAddress, "a", config.DefaultAddress, "server address")
	flags.String(config.KeyCodec, codec.CodecTypeMsgpack.String(), "wire codec (msgpack, json)")
	flags.String(config.KeyFraming, "length-prefix", "message framing (length-prefix, short-read)")
	flags.BoolP(config.KeyDebug, "d", false, "debug mode")
	opts.bindFlags(cmd, config.KeyAddress, config.KeyCodec, config.KeyFraming, config.KeyDebug)

	cmd.AddCommand(
		newVersionCommand(versionMsg),
		newServerCommand(opts),
		newAddNameCommand(opts),
		newPrintNamesCommand(opts),
		newCountCommand(opts),
		newIncrCommand(opts),
	)
	return cmd
}

func (opts *rootOptions) bindFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		flag := cmd.PersistentFlags().Lookup(key)
		if flag == nil {
			flag = cmd.Flags().Lookup(key)
		}
		if flag == nil {
			panic(fmt.Sprintf("no flag for config key %q", key))
		}
		opts.v.BindPFlag(key, flag)
	}
}

func (opts *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(opts.v, opts.configFile)
	if err != nil {
		return err
	}
	opts.cfg = cfg

	logger := log.NewLogfmtLogger(log.NewSyncWriter(cmd.ErrOrStderr()))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	if cfg.Debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	opts.logger = logger
	level.Debug(logger).Log("msg", "config loaded", "address", cfg.Address, "codec", cfg.Codec, "framing", cfg.Framing)
	return nil
}

// client builds a client for the configured server.
func (opts *rootOptions) client() (*client.Client, error) {
	ct, err := opts.cfg.CodecType()
	if err != nil {
		return nil, err
	}
	framing, err := opts.cfg.TransportFraming()
	if err != nil {
		return nil, err
	}
	return client.NewClient(opts.cfg.Address,
		client.WithCodec(codec.GetCodec(ct)),
		client.WithFraming(framing),
		client.WithDialTimeout(opts.cfg.DialTimeout),
		client.WithReadTimeout(opts.cfg.ReadTimeout),
	), nil
}

func newVersionCommand(versionMsg string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of pirate",
		// do not execute any persistent actions
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionMsg)
		},
	}
}
