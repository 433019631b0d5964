package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/netcfgd/netcfgd/configuration"
	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/platform"
	"github.com/netcfgd/netcfgd/pkg/platform/fake"
	"github.com/netcfgd/netcfgd/pkg/platform/kernel"
)

var (
	loggingVerbosity string
	configPath       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netcfgd",
	Short: "Network configuration daemon, for more information look at the daemon command",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Initialize(loggingVerbosity)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&loggingVerbosity, "verbosity", "v", "info", "Logging verbosity can be one of: panic, error, info, trace")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configuration.DefaultConfigPath, "Path of the TOML configuration file")
}

// newBackend builds the backend selected in cfg
func newBackend(ctx context.Context, cfg configuration.PlatformConfig) (platform.Backend, error) {
	if cfg.Backend == configuration.BackendFake {
		return fake.New(fake.WithSysctlPrefixes(cfg.SysctlPrefixes)), nil
	}
	b, err := kernel.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// startPlatform loads the configuration and returns a populated Platform
// whose event loop runs until ctx ends. observers are registered before the
// loop starts. stopped is closed once the loop has returned.
func startPlatform(ctx context.Context, observers ...func(platform.Event)) (p *platform.Platform, cfg *configuration.Config, stopped <-chan struct{}, err error) {
	cfg, err = configuration.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	backend, err := newBackend(ctx, cfg.Platform)
	if err != nil {
		return nil, nil, nil, err
	}
	p = platform.New(ctx, backend)
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return nil, nil, nil, err
	}
	for _, fn := range observers {
		p.Subscribe(fn)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.FromContext(ctx).Errorf("Platform event loop exited: %v", err)
		}
	}()
	return p, cfg, done, nil
}
