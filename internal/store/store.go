// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store is the persistence layer (§4.A): durable storage of
// Host and Container rows in a single SQLite file, accessed by a
// single service process (the Infrastructure Service). Every exported
// method runs inside a short-lived transaction; no transaction is
// held across a suspension point outside this package.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kessler-frost/anvyl/internal/anvylerr"
	"github.com/kessler-frost/anvyl/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps a GORM connection to the Anvyl database file.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path, creating it if absent,
// and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.autoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// autoMigrate runs the initial schema migration and then adds the two
// partial unique indexes GORM tags cannot express directly: exactly
// one Host row may have is_local=true, and Container rows share no
// (host_id, name) pair while status != 'removed'.
func (s *Store) autoMigrate() error {
	if err := s.db.AutoMigrate(&models.Host{}, &models.Container{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if !s.db.Migrator().HasIndex(&models.Host{}, "idx_hosts_is_local") {
		if err := s.db.Exec(`CREATE UNIQUE INDEX idx_hosts_is_local ON hosts(is_local) WHERE is_local = true`).Error; err != nil {
			return fmt.Errorf("create idx_hosts_is_local: %w", err)
		}
	}
	if !s.db.Migrator().HasIndex(&models.Container{}, "idx_containers_host_name") {
		if err := s.db.Exec(`CREATE UNIQUE INDEX idx_containers_host_name ON containers(host_id, name) WHERE status != 'removed'`).Error; err != nil {
			return fmt.Errorf("create idx_containers_host_name: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- Hosts ----

// AddHost inserts a new host row.
func (s *Store) AddHost(ctx context.Context, h *models.Host) error {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Host{}).Where("id = ?", h.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return anvylerr.Newf(anvylerr.KindConflict, "host %s already exists", h.ID)
		}
		return tx.Create(h).Error
	})
	return wrapUniqueViolation(err, "host already exists")
}

// UpdateHost applies a partial update by field presence: callers set
// only the fields they intend to change on mutate, then call this
// with the full row re-read under the transaction.
func (s *Store) UpdateHost(ctx context.Context, id string, mutate func(h *models.Host) error) (*models.Host, error) {
	var result models.Host
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h models.Host
		if err := tx.First(&h, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return anvylerr.Newf(anvylerr.KindNotFound, "host %s not found", id)
			}
			return err
		}
		if err := mutate(&h); err != nil {
			return err
		}
		h.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&h).Error; err != nil {
			return err
		}
		result = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListHosts returns all hosts ordered by creation time ascending.
func (s *Store) ListHosts(ctx context.Context) ([]models.Host, error) {
	var hosts []models.Host
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&hosts).Error; err != nil {
		return nil, err
	}
	return hosts, nil
}

// GetHost returns a single host by internal id.
func (s *Store) GetHost(ctx context.Context, id string) (*models.Host, error) {
	var h models.Host
	if err := s.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, anvylerr.Newf(anvylerr.KindNotFound, "host %s not found", id)
		}
		return nil, err
	}
	return &h, nil
}

// GetLocalHost returns the single row with is_local=true.
func (s *Store) GetLocalHost(ctx context.Context) (*models.Host, error) {
	var h models.Host
	if err := s.db.WithContext(ctx).First(&h, "is_local = ?", true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, anvylerr.New(anvylerr.KindNotFound, "local host not yet registered")
		}
		return nil, err
	}
	return &h, nil
}

// RemoveHost deletes a host and cascades to its containers. The local
// host may never be removed.
func (s *Store) RemoveHost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h models.Host
		if err := tx.First(&h, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return anvylerr.Newf(anvylerr.KindNotFound, "host %s not found", id)
			}
			return err
		}
		if h.IsLocal {
			return anvylerr.New(anvylerr.KindInvariant, "the local host cannot be removed")
		}
		if err := tx.Where("host_id = ?", id).Delete(&models.Container{}).Error; err != nil {
			return err
		}
		return tx.Delete(&h).Error
	})
}

// ---- Containers ----

// AddContainer inserts a new container row scoped to an existing host.
func (s *Store) AddContainer(ctx context.Context, c *models.Container) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hostCount int64
		if err := tx.Model(&models.Host{}).Where("id = ?", c.HostID).Count(&hostCount).Error; err != nil {
			return err
		}
		if hostCount == 0 {
			return anvylerr.Newf(anvylerr.KindNotFound, "host %s not found", c.HostID)
		}
		var nameCount int64
		if err := tx.Model(&models.Container{}).
			Where("host_id = ? AND name = ? AND status != ?", c.HostID, c.Name, models.ContainerRemoved).
			Count(&nameCount).Error; err != nil {
			return err
		}
		if nameCount > 0 {
			return anvylerr.Newf(anvylerr.KindConflict, "container %s already exists on host %s", c.Name, c.HostID)
		}
		return tx.Create(c).Error
	})
	return wrapUniqueViolation(err, "container already exists on host")
}

// UpdateContainer applies a partial update under a transaction.
func (s *Store) UpdateContainer(ctx context.Context, id string, mutate func(c *models.Container) error) (*models.Container, error) {
	var result models.Container
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Container
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return anvylerr.Newf(anvylerr.KindNotFound, "container %s not found", id)
			}
			return err
		}
		if err := mutate(&c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListContainers returns containers ordered by creation time
// descending, optionally filtered by host id. Unless all is true,
// stopped and exited containers are excluded from the result.
func (s *Store) ListContainers(ctx context.Context, hostID string, all bool) ([]models.Container, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if hostID != "" {
		q = q.Where("host_id = ?", hostID)
	}
	if !all {
		q = q.Where("status NOT IN ?", []models.ContainerStatus{models.ContainerStopped, models.ContainerExited})
	}
	var containers []models.Container
	if err := q.Find(&containers).Error; err != nil {
		return nil, err
	}
	return containers, nil
}

// GetContainer returns a container by internal id or, if no row
// matches, by docker_id.
func (s *Store) GetContainer(ctx context.Context, id string) (*models.Container, error) {
	var c models.Container
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).First(&c, "docker_id = ?", id).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, anvylerr.Newf(anvylerr.KindNotFound, "container %s not found", id)
		}
		return nil, err
	}
	return &c, nil
}

// RemoveContainer deletes a container row by internal id.
func (s *Store) RemoveContainer(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Container{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return anvylerr.Newf(anvylerr.KindNotFound, "container %s not found", id)
	}
	return nil
}

func wrapUniqueViolation(err error, message string) error {
	if err == nil {
		return nil
	}
	if anvylerr.KindOf(err) != anvylerr.KindInternal {
		return err
	}
	// SQLite reports unique constraint violations as plain errors
	// from the driver; translate anything unclassified that looks
	// like one into Conflict rather than leaking the driver error.
	if isUniqueConstraintError(err) {
		return anvylerr.Wrap(anvylerr.KindConflict, err, message)
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
