// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kessler-frost/anvyl/internal/agent"
	"github.com/kessler-frost/anvyl/internal/supervisor"
)

// newAgentGroupCommand builds `anvyl agent`: the up/down/status/logs
// lifecycle verbs shared with infra/mcp, plus `query`, which talks to
// a running Agent Service over HTTP rather than the Supervisor.
func newAgentGroupCommand() *cobra.Command {
	cmd := newServiceGroupCommand(supervisor.Agent, "agent", "Manage the Agent Service")
	cmd.AddCommand(newAgentQueryCommand())
	return cmd
}

func newAgentQueryCommand() *cobra.Command {
	var hostID string
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Ask the agent to carry out a natural-language infrastructure request",
		Args:  cobra.ExactArgs(1),
		Example: `  anvyl agent query "list all running containers"
  anvyl agent query --host-id h-local "how much memory is free?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			resp, err := newAgentClient(cfg).Query(cmd.Context(), agent.QueryRequest{
				Query:  args[0],
				HostID: hostID,
			})
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(resp)
			}
			fmt.Println(resp.Reply)
			for _, tc := range resp.ToolCalls {
				fmt.Printf("  [tool] %s(%v) -> %s\n", tc.Name, tc.Arguments, tc.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "scope the request to a specific host")
	return cmd
}
