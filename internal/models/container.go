// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"time"
)

// ContainerStatus mirrors the engine's lifecycle states plus the
// store-only "removed" terminal state.
type ContainerStatus string

const (
	ContainerCreated ContainerStatus = "created"
	ContainerRunning ContainerStatus = "running"
	ContainerExited  ContainerStatus = "exited"
	ContainerStopped ContainerStatus = "stopped"
	ContainerRemoved ContainerStatus = "removed"
	ContainerUnknown ContainerStatus = "unknown"
)

// Container is a Docker engine container managed by Anvyl, identified
// both by an internal ID (this row's primary key) and by the engine's
// DockerID, which is nil until the engine confirms creation.
type Container struct {
	ID       string          `gorm:"primaryKey;column:id" json:"id"`
	DockerID *string         `gorm:"column:docker_id" json:"docker_id,omitempty"`
	Name     string          `gorm:"column:name" json:"name"`
	Image    string          `gorm:"column:image" json:"image"`
	HostID   string          `gorm:"column:host_id;index" json:"host_id"`
	Status   ContainerStatus `gorm:"column:status" json:"status"`

	Labels      string `gorm:"column:labels" json:"-"`
	Ports       string `gorm:"column:ports" json:"-"`
	Volumes     string `gorm:"column:volumes" json:"-"`
	Environment string `gorm:"column:environment" json:"-"`
	Command     string `gorm:"column:command" json:"-"`

	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
	StartedAt  *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	ExitCode   *int       `gorm:"column:exit_code" json:"exit_code,omitempty"`

	// missingTicks counts consecutive reconciler ticks during which
	// the engine did not report this container. Not persisted;
	// tracked in the reconciler's in-memory pass state (§4.C,
	// invariant 3).
}

func (Container) TableName() string { return "containers" }

type containerJSON struct {
	ID          string            `json:"id"`
	DockerID    *string           `json:"docker_id,omitempty"`
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	HostID      string            `json:"host_id"`
	Status      ContainerStatus   `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
	Ports       []string          `json:"ports,omitempty"`
	Volumes     []string          `json:"volumes,omitempty"`
	Environment []string          `json:"environment,omitempty"`
	Command     []string          `json:"command,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	ExitCode    *int              `json:"exit_code,omitempty"`
}

func (c Container) MarshalJSON() ([]byte, error) {
	return json.Marshal(containerJSON{
		ID: c.ID, DockerID: c.DockerID, Name: c.Name, Image: c.Image, HostID: c.HostID, Status: c.Status,
		Labels: c.GetLabels(), Ports: c.GetPorts(), Volumes: c.GetVolumes(),
		Environment: c.GetEnvironment(), Command: c.GetCommand(),
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt, StartedAt: c.StartedAt,
		FinishedAt: c.FinishedAt, ExitCode: c.ExitCode,
	})
}

func (c *Container) UnmarshalJSON(data []byte) error {
	var wire containerJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.ID, c.DockerID, c.Name, c.Image, c.HostID, c.Status = wire.ID, wire.DockerID, wire.Name, wire.Image, wire.HostID, wire.Status
	c.CreatedAt, c.UpdatedAt, c.StartedAt, c.FinishedAt, c.ExitCode = wire.CreatedAt, wire.UpdatedAt, wire.StartedAt, wire.FinishedAt, wire.ExitCode
	c.SetLabels(wire.Labels)
	c.SetPorts(wire.Ports)
	c.SetVolumes(wire.Volumes)
	c.SetEnvironment(wire.Environment)
	c.SetCommand(wire.Command)
	return nil
}

func (c *Container) GetLabels() map[string]string { return decodeStringMap(c.Labels) }
func (c *Container) SetLabels(v map[string]string) { c.Labels = encodeStringMap(v) }

func (c *Container) GetPorts() []string   { return decodeStringSlice(c.Ports) }
func (c *Container) SetPorts(v []string)  { c.Ports = encodeStringSlice(v) }

func (c *Container) GetVolumes() []string  { return decodeStringSlice(c.Volumes) }
func (c *Container) SetVolumes(v []string) { c.Volumes = encodeStringSlice(v) }

func (c *Container) GetEnvironment() []string  { return decodeStringSlice(c.Environment) }
func (c *Container) SetEnvironment(v []string) { c.Environment = encodeStringSlice(v) }

func (c *Container) GetCommand() []string  { return decodeStringSlice(c.Command) }
func (c *Container) SetCommand(v []string) { c.Command = encodeStringSlice(v) }

func decodeStringSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}

func encodeStringSlice(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStringMap(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}

func encodeStringMap(v map[string]string) string {
	if v == nil {
		v = map[string]string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
