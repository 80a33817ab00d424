// Package config loads the settings shared by the pirate server and client
// commands from defaults, an optional config file, PIRATE_* environment
// variables and bound command-line flags, in increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"pirate-rpc/codec"
	"pirate-rpc/transport"
)

const (
	KeyAddress        = "address"
	KeyCodec          = "codec"
	KeyFraming        = "framing"
	KeyReadTimeout    = "read_timeout"
	KeyDialTimeout    = "dial_timeout"
	KeySequential     = "sequential"
	KeyRateLimit      = "rate_limit"
	KeyRateBurst      = "rate_burst"
	KeyMetricsAddress = "metrics_address"
	KeyDebug          = "debug"

	EnvPrefix      = "PIRATE"
	DefaultAddress = "127.0.0.1:5858"
)

type Config struct {
	Address        string        `mapstructure:"address"`
	Codec          string        `mapstructure:"codec"`
	Framing        string        `mapstructure:"framing"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	Sequential     bool          `mapstructure:"sequential"`
	RateLimit      float64       `mapstructure:"rate_limit"` // calls per second, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	Debug          bool          `mapstructure:"debug"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddress, DefaultAddress)
	v.SetDefault(KeyCodec, codec.CodecTypeMsgpack.String())
	v.SetDefault(KeyFraming, transport.FramingLengthPrefix.String())
	v.SetDefault(KeyReadTimeout, time.Duration(0))
	v.SetDefault(KeyDialTimeout, 10*time.Second)
	v.SetDefault(KeySequential, false)
	v.SetDefault(KeyRateLimit, 0.0)
	v.SetDefault(KeyRateBurst, 1)
	v.SetDefault(KeyMetricsAddress, "")
	v.SetDefault(KeyDebug, false)
}

// Load reads file, if given, into v and returns the validated configuration.
// Flags must already be bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", file)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address must not be empty")
	}
	if _, err := c.CodecType(); err != nil {
		return err
	}
	if _, err := c.TransportFraming(); err != nil {
		return err
	}
	if c.ReadTimeout < 0 {
		return errors.Errorf("read_timeout must not be negative, got %s", c.ReadTimeout)
	}
	if c.DialTimeout < 0 {
		return errors.Errorf("dial_timeout must not be negative, got %s", c.DialTimeout)
	}
	if c.RateLimit < 0 {
		return errors.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", c.RateBurst)
	}
	return nil
}

func (c *Config) CodecType() (codec.CodecType, error) {
	t, err := codec.ParseCodecType(c.Codec)
	return t, errors.Wrap(err, "codec")
}

func (c *Config) TransportFraming() (transport.Framing, error) {
	switch strings.ToLower(c.Framing) {
	case "", transport.FramingLengthPrefix.String():
		return transport.FramingLengthPrefix, nil
	case transport.FramingShortRead.String():
		return transport.FramingShortRead, nil
	}
	return 0, errors.Errorf("unknown framing %q", c.Framing)
}
