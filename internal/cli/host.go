// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/models"
)

// newHostCommand builds `anvyl host list|add|metrics`, proxied over
// HTTP to the Infrastructure Service's /hosts API.
func newHostCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "host", Short: "Manage hosts known to the Infrastructure Service"}
	cmd.AddCommand(newHostListCommand())
	cmd.AddCommand(newHostAddCommand())
	cmd.AddCommand(newHostMetricsCommand())
	return cmd
}

func newHostListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hosts, err := newInfraClient(cfg).ListHosts(cmd.Context())
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(hosts)
			}
			printHosts(hosts)
			return nil
		},
	}
}

func printHosts(hosts []models.Host) {
	if len(hosts) == 0 {
		fmt.Println("no hosts")
		return
	}
	for _, h := range hosts {
		local := ""
		if h.IsLocal {
			local = " (local)"
		}
		fmt.Printf("%-36s  %-16s  %-15s  %-10s%s\n", h.ID, h.Name, h.IP, h.Status, local)
	}
}

func newHostAddCommand() *cobra.Command {
	var name, ip, osName string
	var tags []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || ip == "" {
				return newExitError(ExitInvalidArgs, fmt.Errorf("--name and --ip are required"))
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			host, err := newInfraClient(cfg).AddHost(cmd.Context(), infra.AddHostRequest{
				Name: name,
				IP:   ip,
				OS:   osName,
				Tags: tags,
			})
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(host)
			}
			fmt.Printf("host added: %s\n", host.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "host name (required)")
	cmd.Flags().StringVar(&ip, "ip", "", "host IP address (required)")
	cmd.Flags().StringVar(&osName, "os", "", "host operating system")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	return cmd
}

func newHostMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <host-id>",
		Short: "Show a host's current resource usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := newInfraClient(cfg).HostMetrics(cmd.Context(), args[0])
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(m)
			}
			fmt.Printf("cpu=%.1f%%  mem=%d/%d  disk=%d/%d  load=%.2f\n",
				m.CPUPercent, m.MemoryUsed, m.MemoryTotal, m.DiskUsed, m.DiskTotal, m.LoadAverage)
			return nil
		},
	}
}
