// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/infra"
)

// toolHandler executes one tool call against the Infrastructure
// Service and returns its result as the tool's text content.
type toolHandler func(ctx context.Context, svc InfraClient, args map[string]any) (string, error)

type toolDef struct {
	Tool
	handler toolHandler
}

// catalog is the fixed set of tools the MCP server exposes, grounded
// on the Infrastructure Service's HTTP surface plus the supplemented
// exec_host_command tool.
var catalog = []toolDef{
	{
		Tool: newTool("list_hosts", "List all hosts known to this node", nil, nil),
		handler: func(ctx context.Context, svc InfraClient, _ map[string]any) (string, error) {
			hosts, err := svc.ListHosts(ctx)
			if err != nil {
				return "", err
			}
			return toJSON(hosts)
		},
	},
	{
		Tool: newTool("add_host", "Register a remote host by name and IP", map[string]any{
			"name": strProp("display name of the host"),
			"ip":   strProp("reachable IP address of the host"),
			"os":   strProp("operating system, optional"),
		}, []string{"name", "ip"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			req := infra.AddHostRequest{
				Name: strArg(args, "name"),
				IP:   strArg(args, "ip"),
				OS:   strArg(args, "os"),
			}
			h, err := svc.AddHost(ctx, req)
			if err != nil {
				return "", err
			}
			return toJSON(h)
		},
	},
	{
		Tool: newTool("get_host_metrics", "Read current CPU, memory, disk, and load for a host", map[string]any{
			"host_id": strProp("internal id of the host"),
		}, []string{"host_id"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			m, err := svc.HostMetrics(ctx, strArg(args, "host_id"))
			if err != nil {
				return "", err
			}
			return toJSON(m)
		},
	},
	{
		Tool: newTool("list_containers", "List containers, optionally filtered by host", map[string]any{
			"host_id": strProp("internal id of the host, optional"),
			"all":     boolProp("include stopped and exited containers, optional"),
		}, nil),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			all, _ := args["all"].(bool)
			containers, err := svc.ListContainers(ctx, strArg(args, "host_id"), all)
			if err != nil {
				return "", err
			}
			return toJSON(containers)
		},
	},
	{
		Tool: newTool("create_container", "Create and start a container from an image", map[string]any{
			"name":        strProp("container name, unique per host"),
			"image":       strProp("image reference to run"),
			"ports":       arrProp("port bindings as hostPort:containerPort[/proto]"),
			"volumes":     arrProp("volume bindings as hostPath:containerPath[:ro]"),
			"environment": arrProp("environment variables as KEY=VALUE"),
			"command":     arrProp("command override"),
		}, []string{"name", "image"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			req := infra.CreateContainerRequest{
				Name:        strArg(args, "name"),
				Image:       strArg(args, "image"),
				Ports:       strSliceArg(args, "ports"),
				Volumes:     strSliceArg(args, "volumes"),
				Environment: strSliceArg(args, "environment"),
				Command:     strSliceArg(args, "command"),
			}
			c, err := svc.CreateContainer(ctx, req)
			if err != nil {
				return "", err
			}
			return toJSON(c)
		},
	},
	{
		Tool: newTool("remove_container", "Stop and remove a container", map[string]any{
			"container_id": strProp("internal id of the container"),
			"force":        boolProp("force removal even if running"),
		}, []string{"container_id"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			force, _ := args["force"].(bool)
			if err := svc.RemoveContainer(ctx, strArg(args, "container_id"), force); err != nil {
				return "", err
			}
			return `{"removed":true}`, nil
		},
	},
	{
		Tool: newTool("get_container_logs", "Read the tail of a container's logs", map[string]any{
			"container_id": strProp("internal id of the container"),
			"tail":         numProp("number of lines from the end, optional"),
		}, []string{"container_id"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			tail := 200
			if n, ok := args["tail"].(float64); ok {
				tail = int(n)
			}
			rc, err := svc.ContainerLogs(ctx, strArg(args, "container_id"), tail, false)
			if err != nil {
				return "", err
			}
			defer rc.Close()
			buf := make([]byte, 0, 4096)
			tmp := make([]byte, 4096)
			for {
				n, rerr := rc.Read(tmp)
				if n > 0 {
					buf = append(buf, tmp[:n]...)
				}
				if rerr != nil {
					break
				}
			}
			return string(buf), nil
		},
	},
	{
		Tool: newTool("exec_container_command", "Run a command inside a container and return its output", map[string]any{
			"container_id": strProp("internal id of the container"),
			"command":      arrProp("argv to execute"),
		}, []string{"container_id", "command"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			req := infra.ExecRequest{Command: strSliceArg(args, "command")}
			res, err := svc.ExecContainer(ctx, strArg(args, "container_id"), req)
			if err != nil {
				return "", err
			}
			return toJSON(res)
		},
	},
	{
		Tool: newTool("get_system_status", "Summarize host count, container counts, and engine health", nil, nil),
		handler: func(ctx context.Context, svc InfraClient, _ map[string]any) (string, error) {
			status, err := svc.SystemStatus(ctx)
			if err != nil {
				return "", err
			}
			return toJSON(status)
		},
	},
	{
		// Supplemented tool, grounded on
		// original_source/anvyl/infrastructure_service.py's
		// exec_command_on_host: local-host-only command execution.
		Tool: newTool("exec_host_command", "Run a command directly on the local host (not inside a container)", map[string]any{
			"host_id": strProp("must be the local host's id"),
			"command": arrProp("argv to execute"),
		}, []string{"host_id", "command"}),
		handler: func(ctx context.Context, svc InfraClient, args map[string]any) (string, error) {
			req := infra.ExecRequest{Command: strSliceArg(args, "command")}
			res, err := svc.ExecOnHost(ctx, strArg(args, "host_id"), req)
			if err != nil {
				return "", err
			}
			return toJSON(res)
		},
	},
}

func toolsByName() map[string]toolDef {
	out := make(map[string]toolDef, len(catalog))
	for _, t := range catalog {
		out[t.Name] = t
	}
	return out
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", anvylerr.Wrap(anvylerr.KindInternal, err, "encode tool result")
	}
	return string(b), nil
}

func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func schema(props map[string]any, required []string) map[string]any {
	s := map[string]any{"type": "object"}
	if props != nil {
		s["properties"] = props
	} else {
		s["properties"] = map[string]any{}
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// newTool builds a Tool definition, setting Required alongside
// InputSchema so a caller doesn't have to dig into the JSON schema
// object to learn which arguments are mandatory.
func newTool(name, description string, props map[string]any, required []string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schema(props, required),
		Required:    required,
	}
}

func strProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func arrProp(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": description}
}

func numProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}
