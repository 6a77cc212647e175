/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/abelian-network/abelian-go/pkg/io"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout used for transaction confirmation.
const DefaultTimeout = 10 * time.Second

// KeyEnvVar is the environment variable the signing key is taken from if
// --key is not given.
const KeyEnvVar = "ABELIAN_KEY"

// Config is a flag for commands that use the tool configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with the configuration file (may be overridden by --config-file option)",
}

// ConfigFile is a flag for commands that use the tool configuration and
// provide path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (overrides --config-path option)",
}

// Debug is a flag for commands that allow debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Key is a flag for commands that need a signing key.
var Key = cli.StringFlag{
	Name:   "key, k",
	Usage:  "hex-encoded private key used to sign the transaction",
	EnvVar: KeyEnvVar,
}

// Timeout is a flag for commands that wait for confirmation.
var Timeout = cli.DurationFlag{
	Name:  "timeout, s",
	Value: DefaultTimeout,
	Usage: "timeout for the operation",
}

// Common is the set of flags every registry command accepts.
var Common = []cli.Flag{Config, ConfigFile, Debug}

var errNoKey = errors.New("no signing key given, use '--key' option or " + KeyEnvVar + " environment variable")

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext looks at the path flags in the given context and
// returns an appropriate config.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		return config.LoadFile(configFile)
	}
	var configPath = config.DefaultConfigPath
	if argCp := ctx.String("config-path"); argCp != "" {
		configPath = argCp
	}
	return config.Load(configPath)
}

// GetKeyFromContext returns the signing key given via --key flag.
func GetKeyFromContext(ctx *cli.Context) (*keys.PrivateKey, error) {
	s := ctx.String("key")
	if len(s) == 0 {
		return nil, errNoKey
	}
	k, err := keys.NewPrivateKeyFromHex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	return k, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
// The returned closer syncs the logger.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := io.MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, nil, err
		}
		cc.OutputPaths = []string{logPath}
	} else {
		cc.OutputPaths = []string{"stderr"}
	}

	log, err := cc.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() error {
		err := log.Sync()
		// Syncing stderr fails on some platforms, it's not a problem.
		if err != nil && cfg.LogPath == "" {
			return nil
		}
		return err
	}
	return log, &cc.Level, closer, nil
}

// ExitWith wraps err into the cli.ExitCoder with code 1, nil is returned
// for nil errors.
func ExitWith(err error) error {
	if err == nil {
		return nil
	}
	return cli.NewExitError(err, 1)
}
