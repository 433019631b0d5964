package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netcfgd/netcfgd/configuration"
	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

var sysctlCmd = &cobra.Command{
	Use:   "sysctl",
	Short: "Reads or writes kernel parameters under the allowed prefixes",
}

var sysctlGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Prints the value of a sysctl, e.g. /proc/sys/net/ipv6/conf/eth0/mtu",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p := sysctlPlatform(ctx)
		value, err := p.SysctlGet(args[0])
		_ = p.Close()
		if err != nil {
			logger.FromContext(ctx).Fatalf("Unable to read sysctl: %v", err)
		}
		fmt.Println(value)
	},
}

var sysctlSetCmd = &cobra.Command{
	Use:   "set PATH VALUE",
	Short: "Writes a sysctl value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p := sysctlPlatform(ctx)
		err := p.SysctlSet(args[0], args[1])
		_ = p.Close()
		if err != nil {
			logger.FromContext(ctx).Fatalf("Unable to write sysctl: %v", err)
		}
	},
}

// sysctlPlatform skips enumeration, sysctl access only needs the backend
func sysctlPlatform(ctx context.Context) *platform.Platform {
	log := logger.FromContext(ctx)
	cfg, err := configuration.Load(configPath)
	if err != nil {
		log.Fatalf("Unable to load configuration: %v", err)
	}
	backend, err := newBackend(ctx, cfg.Platform)
	if err != nil {
		log.Fatalf("Unable to create backend: %v", err)
	}
	return platform.New(ctx, backend)
}

func init() {
	rootCmd.AddCommand(sysctlCmd)
	sysctlCmd.AddCommand(sysctlGetCmd, sysctlSetCmd)
}
