// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the GORM-mapped Host and Container rows that
// the persistence layer reads and writes.
package models

import (
	"encoding/json"
	"time"
)

// HostStatus is one of the three host lifecycle states.
type HostStatus string

const (
	HostActive   HostStatus = "active"
	HostInactive HostStatus = "inactive"
	HostUnknown  HostStatus = "unknown"
)

// Host is a machine (physical, virtual, or this process's own
// machine) known to Anvyl. Exactly one row has IsLocal=true.
type Host struct {
	ID        string     `gorm:"primaryKey;column:id" json:"id"`
	Name      string     `gorm:"column:name" json:"name"`
	IP        string     `gorm:"column:ip" json:"ip"`
	OS        string     `gorm:"column:os" json:"os,omitempty"`
	Status    HostStatus `gorm:"column:status" json:"status"`
	Resources string     `gorm:"column:resources" json:"resources,omitempty"` // opaque JSON blob
	Tags      string     `gorm:"column:tags" json:"-"`                        // JSON-encoded []string, use GetTags/SetTags
	Metadata  string     `gorm:"column:metadata" json:"metadata,omitempty"`   // opaque JSON blob

	IsLocal bool `gorm:"column:is_local" json:"is_local"`

	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
	LastHeartbeat *time.Time `gorm:"column:last_heartbeat" json:"last_heartbeat,omitempty"`

	Containers []Container `gorm:"foreignKey:HostID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Host) TableName() string { return "hosts" }

// hostJSON is the wire shape for Host: identical fields plus a
// decoded Tags slice in place of the raw JSON-encoded column.
type hostJSON struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IP            string     `json:"ip"`
	OS            string     `json:"os,omitempty"`
	Status        HostStatus `json:"status"`
	Resources     string     `json:"resources,omitempty"`
	Tags          []string   `json:"tags"`
	Metadata      string     `json:"metadata,omitempty"`
	IsLocal       bool       `json:"is_local"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

func (h Host) MarshalJSON() ([]byte, error) {
	return json.Marshal(hostJSON{
		ID: h.ID, Name: h.Name, IP: h.IP, OS: h.OS, Status: h.Status,
		Resources: h.Resources, Tags: h.GetTags(), Metadata: h.Metadata,
		IsLocal: h.IsLocal, CreatedAt: h.CreatedAt, UpdatedAt: h.UpdatedAt,
		LastHeartbeat: h.LastHeartbeat,
	})
}

func (h *Host) UnmarshalJSON(data []byte) error {
	var wire hostJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	h.ID, h.Name, h.IP, h.OS, h.Status = wire.ID, wire.Name, wire.IP, wire.OS, wire.Status
	h.Resources, h.Metadata, h.IsLocal = wire.Resources, wire.Metadata, wire.IsLocal
	h.CreatedAt, h.UpdatedAt, h.LastHeartbeat = wire.CreatedAt, wire.UpdatedAt, wire.LastHeartbeat
	h.SetTags(wire.Tags)
	return nil
}

// GetTags decodes the JSON-encoded Tags column.
func (h *Host) GetTags() []string {
	if h.Tags == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(h.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

// SetTags encodes tags into the Tags column.
func (h *Host) SetTags(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return
	}
	h.Tags = string(b)
}
