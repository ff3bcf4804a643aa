// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kessler-frost/anvyl/internal/supervisor"
)

// newUpCommand starts every service in order (infra, then mcp, then
// agent), waiting for each one's health endpoint before moving on.
func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start the Infrastructure, MCP, and Agent services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup := newSupervisor(cfg)
			if err := sup.StartAll(cmd.Context(), supervisor.StartOptions{}); err != nil {
				return wrapSpawnError(err)
			}
			fmt.Println("anvyl is up")
			return nil
		},
	}
}

// newDownCommand stops every service in the reverse of start order.
func newDownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop the Agent, MCP, and Infrastructure services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup := newSupervisor(cfg)
			if err := sup.StopAll(cmd.Context()); err != nil {
				return wrapAPIError(err)
			}
			fmt.Println("anvyl is down")
			return nil
		},
	}
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart every service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup := newSupervisor(cfg)
			if err := sup.StopAll(cmd.Context()); err != nil {
				return wrapAPIError(err)
			}
			if err := sup.StartAll(cmd.Context(), supervisor.StartOptions{}); err != nil {
				return wrapSpawnError(err)
			}
			fmt.Println("anvyl restarted")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of every service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup := newSupervisor(cfg)
			statuses, healthy, err := sup.StatusAll(cmd.Context())
			if err != nil {
				return wrapAPIError(err)
			}
			printStatuses(statuses)
			if !healthy {
				return newExitError(ExitServiceNotRunning, fmt.Errorf("one or more services are not running"))
			}
			return nil
		},
	}
}

func printStatuses(statuses map[supervisor.Service]supervisor.Status) {
	if jsonOutput {
		out := make([]supervisor.Status, 0, len(statuses))
		for _, svc := range supervisor.All {
			out = append(out, statuses[svc])
		}
		_ = json.NewEncoder(os.Stdout).Encode(out)
		return
	}
	for _, svc := range supervisor.All {
		st := statuses[svc]
		if st.Running {
			fmt.Printf("%-8s running  pid=%d  port=%d  uptime=%.0fs\n", svc, st.PID, st.Port, st.UptimeSeconds)
		} else {
			fmt.Printf("%-8s stopped  port=%d\n", svc, st.Port)
		}
	}
}

// newServiceGroupCommand builds the `anvyl <service> up|down|status|logs`
// group shared by infra and mcp (agent adds `query` on top of this).
func newServiceGroupCommand(svc supervisor.Service, use, short string) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(newServiceUpCommand(svc))
	cmd.AddCommand(newServiceDownCommand(svc))
	cmd.AddCommand(newServiceStatusCommand(svc))
	cmd.AddCommand(newServiceLogsCommand(svc))
	return cmd
}

func newServiceUpCommand(svc supervisor.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: fmt.Sprintf("Start the %s service", svc),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pid, err := newSupervisor(cfg).Start(cmd.Context(), svc, supervisor.StartOptions{})
			if err != nil {
				return wrapSpawnError(err)
			}
			fmt.Printf("%s started (pid %d)\n", svc, pid)
			return nil
		},
	}
}

func newServiceDownCommand(svc supervisor.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: fmt.Sprintf("Stop the %s service", svc),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newSupervisor(cfg).Stop(cmd.Context(), svc); err != nil {
				return wrapAPIError(err)
			}
			fmt.Printf("%s stopped\n", svc)
			return nil
		},
	}
}

func newServiceStatusCommand(svc supervisor.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: fmt.Sprintf("Show the status of the %s service", svc),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := newSupervisor(cfg).Status(cmd.Context(), svc)
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				_ = json.NewEncoder(os.Stdout).Encode(st)
			} else if st.Running {
				fmt.Printf("%s running  pid=%d  port=%d  uptime=%.0fs\n", svc, st.PID, st.Port, st.UptimeSeconds)
			} else {
				fmt.Printf("%s stopped  port=%d\n", svc, st.Port)
			}
			if !st.Running {
				return newExitError(ExitServiceNotRunning, fmt.Errorf("%s is not running", svc))
			}
			return nil
		},
	}
}

func newServiceLogsCommand(svc supervisor.Service) *cobra.Command {
	var follow bool
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: fmt.Sprintf("Show the %s service's log output", svc),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runLogs(cmd.Context(), newSupervisor(cfg), svc, lines, follow)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "follow the log as it grows")
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "number of lines to show")
	return cmd
}

func runLogs(ctx context.Context, sup *supervisor.Supervisor, svc supervisor.Service, lines int, follow bool) error {
	r, err := sup.Logs(svc, lines, follow)
	if err != nil {
		return wrapAPIError(err)
	}
	defer r.Close()

	if !follow {
		_, err := io.Copy(os.Stdout, r)
		return err
	}

	// Follow mode: stream whatever the child appends from here on,
	// polling since the log file is a plain append-only file rather
	// than a pipe the CLI can block-read from.
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
	}
}
