package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"acrossScope/internal/across"
	"acrossScope/internal/config"
)

func runListEvents(cmd *cobra.Command, _ []string) error {
	registry, err := across.DefaultRegistry()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range registry.Names() {
		descriptor, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		columns := descriptor.Columns()
		names := make([]string, 0, len(columns))
		for _, col := range columns {
			names = append(names, col.Name+":"+string(col.Type))
		}
		fmt.Fprintf(out, "%s\n  topic0:    %s\n  signature: %s\n  columns:   %s\n",
			name, descriptor.Topic0().Hex(), descriptor.Signature, strings.Join(names, ", "))
	}
	return nil
}

func runListClients(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, client := range cfg.Clients {
		fmt.Fprintf(out, "%-10s %s %s\n", client.Name, client.SpokePool.Hex(), client.RPCURL)
	}
	return nil
}
