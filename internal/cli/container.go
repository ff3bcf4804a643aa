// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kessler-frost/anvyl/internal/infra"
	"github.com/kessler-frost/anvyl/internal/models"
)

// newContainerCommand builds `anvyl container list|create|stop|logs|exec`,
// proxied over HTTP to the Infrastructure Service's /containers API.
func newContainerCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "container", Short: "Manage containers on a host"}
	cmd.AddCommand(newContainerListCommand())
	cmd.AddCommand(newContainerCreateCommand())
	cmd.AddCommand(newContainerStopCommand())
	cmd.AddCommand(newContainerLogsCommand())
	cmd.AddCommand(newContainerExecCommand())
	return cmd
}

func newContainerListCommand() *cobra.Command {
	var hostID string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			containers, err := newInfraClient(cfg).ListContainers(cmd.Context(), hostID, all)
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(containers)
			}
			printContainers(containers)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "limit to one host")
	cmd.Flags().BoolVar(&all, "all", false, "include stopped and exited containers")
	return cmd
}

func printContainers(containers []models.Container) {
	if len(containers) == 0 {
		fmt.Println("no containers")
		return
	}
	for _, c := range containers {
		fmt.Printf("%-36s  %-20s  %-30s  %-10s\n", c.ID, c.Name, c.Image, c.Status)
	}
}

func newContainerCreateCommand() *cobra.Command {
	var name, image, hostID string
	var ports, volumes, env, command []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and start a new container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || image == "" {
				return newExitError(ExitInvalidArgs, fmt.Errorf("--name and --image are required"))
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newInfraClient(cfg).CreateContainer(cmd.Context(), infra.CreateContainerRequest{
				Name:        name,
				Image:       image,
				HostID:      hostID,
				Ports:       ports,
				Volumes:     volumes,
				Environment: env,
				Command:     command,
			})
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(c)
			}
			fmt.Printf("container created: %s\n", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "container name (required)")
	cmd.Flags().StringVar(&image, "image", "", "image reference (required)")
	cmd.Flags().StringVar(&hostID, "host-id", "", "host to run on (defaults to the local host)")
	cmd.Flags().StringSliceVar(&ports, "port", nil, "hostPort:containerPort[/proto] (repeatable)")
	cmd.Flags().StringSliceVar(&volumes, "volume", nil, "hostPath:containerPath[:ro] (repeatable)")
	cmd.Flags().StringSliceVar(&env, "env", nil, "KEY=VALUE (repeatable)")
	cmd.Flags().StringSliceVar(&command, "command", nil, "override the image's entrypoint command")
	return cmd
}

func newContainerStopCommand() *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "stop <container-id>",
		Short: "Stop a running container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newInfraClient(cfg).StopContainer(cmd.Context(), args[0], timeout)
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(c)
			}
			fmt.Printf("container stopped: %s\n", c.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 10, "seconds to wait before killing the container")
	return cmd
}

func newContainerLogsCommand() *cobra.Command {
	var follow bool
	var tail int
	cmd := &cobra.Command{
		Use:   "logs <container-id>",
		Short: "Show a container's log output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := newInfraClient(cfg).ContainerLogs(cmd.Context(), args[0], tail, follow)
			if err != nil {
				return wrapAPIError(err)
			}
			defer r.Close()
			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "follow the log as it grows")
	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "number of lines to show")
	return cmd
}

func newContainerExecCommand() *cobra.Command {
	var workdir string
	var env []string
	var timeout int
	cmd := &cobra.Command{
		Use:   "exec <container-id> -- <command...>",
		Short: "Run a command inside a container",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := newInfraClient(cfg).ExecContainer(cmd.Context(), args[0], infra.ExecRequest{
				Command:          args[1:],
				WorkingDirectory: workdir,
				Env:              env,
				TimeoutSeconds:   timeout,
			})
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			fmt.Print(result.Stdout)
			fmt.Fprint(os.Stderr, result.Stderr)
			if result.ExitCode != 0 {
				return newExitError(ExitFailure, fmt.Errorf("command exited with code %d", result.ExitCode))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workdir, "workdir", "", "working directory inside the container")
	cmd.Flags().StringSliceVar(&env, "env", nil, "KEY=VALUE (repeatable)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "seconds before the exec is killed (0 = no timeout)")
	return cmd
}
