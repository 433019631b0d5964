package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

var dumpIfindex int

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Enumerates the platform once and prints links, addresses and routes as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		log := logger.FromContext(ctx)

		p, _, stopped, err := startPlatform(ctx)
		if err != nil {
			log.Fatalf("Unable to start platform: %v", err)
		}

		dump, err := collect(ctx, snapshot.NewPlatformSource(p), dumpIfindex)
		cancel()
		<-stopped
		_ = p.Close()
		if err != nil {
			log.Fatalf("Unable to read platform state: %v", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(dump); err != nil {
			log.Fatalf("Unable to serialize platform state: %v", err)
		}
	},
}

type platformDump struct {
	Links     []snapshot.Link    `json:"links"`
	Addresses []snapshot.Address `json:"addresses"`
	Routes    []snapshot.Route   `json:"routes"`
}

func collect(ctx context.Context, source snapshot.Source, ifindex int) (*platformDump, error) {
	var (
		dump platformDump
		err  error
	)
	if dump.Links, err = source.Links(ctx, ifindex); err != nil {
		return nil, err
	}
	if dump.Addresses, err = source.Addresses(ctx, ifindex); err != nil {
		return nil, err
	}
	if dump.Routes, err = source.Routes(ctx, ifindex); err != nil {
		return nil, err
	}
	return &dump, nil
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().IntVarP(&dumpIfindex, "ifindex", "i", 0, "Only print objects of this interface index")
}
