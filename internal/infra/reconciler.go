// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package infra

import (
	"context"
	"time"

	"github.com/kessler-frost/anvyl/internal/docker"
	"github.com/kessler-frost/anvyl/internal/hostmetrics"
	"github.com/kessler-frost/anvyl/internal/models"
)

// Run starts the background reconciler loop (§4.C) and returns
// immediately. It ticks every reconcileInterval, skipping a tick
// entirely if the previous one is still running rather than queueing
// it up.
func (s *Service) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// tick runs one reconciliation pass. It returns without reconciling if
// a prior tick is still in flight (reconcileBusy is held for the
// duration of a tick only, never across ticks, so TryLock here always
// reflects "is a tick currently running").
func (s *Service) tick(ctx context.Context) {
	if !s.reconcileBusy.TryLock() {
		s.log.Warn().Msg("skipping reconcile tick: previous tick still running")
		return
	}
	defer s.reconcileBusy.Unlock()

	if err := s.reconcileContainers(ctx); err != nil {
		s.log.Error().Err(err).Msg("reconcile containers failed")
	}
	if err := s.refreshLocalHostMetrics(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh local host metrics failed")
	}
}

// reconcileContainers matches engine containers carrying the managed
// label against store rows by anvyl.container_id, updates matched
// rows, inserts recovered rows for unmatched engine containers, and
// removes store rows absent from the engine for two consecutive ticks
// (§4.C invariant: a brief engine hiccup must not delete state).
func (s *Service) reconcileContainers(ctx context.Context) error {
	engineContainers, err := s.docker.ListManaged(ctx)
	if err != nil {
		return err
	}

	byContainerID := make(map[string]docker.Summary, len(engineContainers))
	for _, ec := range engineContainers {
		if id, ok := ec.Labels[docker.ContainerIDLabel]; ok {
			byContainerID[id] = ec
		}
	}

	rows, err := s.store.ListContainers(ctx, "", true)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(byContainerID))

	for _, row := range rows {
		if row.Status == models.ContainerRemoved {
			continue
		}
		ec, ok := byContainerID[row.ID]
		if !ok {
			s.noteMissing(ctx, row)
			continue
		}
		seen[row.ID] = struct{}{}
		s.clearMissing(row.ID)

		ins, err := s.docker.Inspect(ctx, ec.DockerID)
		if err != nil {
			s.log.Warn().Err(err).Str("container_id", row.ID).Msg("inspect during reconcile failed")
			continue
		}
		lock := s.containerLock(row.ID)
		lock.Lock()
		_, err = s.store.UpdateContainer(ctx, row.ID, func(c *models.Container) error {
			c.DockerID = &ec.DockerID
			c.Status = engineStatusToModel(ins.Status)
			c.StartedAt = ins.StartedAt
			c.FinishedAt = ins.FinishedAt
			c.ExitCode = ins.ExitCode
			return nil
		})
		lock.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Str("container_id", row.ID).Msg("update during reconcile failed")
		}
	}

	// Engine containers the store has never heard of: recover them as
	// new rows so the engine remains the ultimate source of truth.
	for id, ec := range byContainerID {
		if _, ok := seen[id]; ok {
			continue
		}
		if rowExists(rows, id) {
			continue
		}
		ins, err := s.docker.Inspect(ctx, ec.DockerID)
		if err != nil {
			continue
		}
		recovered := &models.Container{
			ID:       id,
			DockerID: &ec.DockerID,
			Name:     firstName(ec.Names),
			Image:    ec.Image,
			HostID:   s.localHostID,
			Status:   engineStatusToModel(ins.Status),
		}
		if err := s.store.AddContainer(ctx, recovered); err != nil {
			s.log.Warn().Err(err).Str("docker_id", ec.DockerID).Msg("recover engine container failed")
		} else {
			s.log.Info().Str("container_id", id).Str("docker_id", ec.DockerID).Msg("recovered untracked engine container")
		}
	}

	return nil
}

const missingTicksBeforeRemoval = 2

func (s *Service) noteMissing(ctx context.Context, row models.Container) {
	s.missingMu.Lock()
	s.missingTicks[row.ID]++
	count := s.missingTicks[row.ID]
	s.missingMu.Unlock()

	if count < missingTicksBeforeRemoval {
		return
	}

	lock := s.containerLock(row.ID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.store.RemoveContainer(ctx, row.ID); err != nil {
		s.log.Warn().Err(err).Str("container_id", row.ID).Msg("remove missing container failed")
		return
	}
	s.log.Info().Str("container_id", row.ID).Msg("removed container absent from engine for two consecutive ticks")
	s.missingMu.Lock()
	delete(s.missingTicks, row.ID)
	s.missingMu.Unlock()
}

func (s *Service) clearMissing(id string) {
	s.missingMu.Lock()
	delete(s.missingTicks, id)
	s.missingMu.Unlock()
}

func (s *Service) refreshLocalHostMetrics(ctx context.Context) error {
	if s.localHostID == "" {
		return nil
	}
	snap, err := hostmetrics.Sample(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.store.UpdateHost(ctx, s.localHostID, func(h *models.Host) error {
		h.Resources = hostmetrics.Encode(snap)
		h.LastHeartbeat = &now
		return nil
	})
	return err
}

func engineStatusToModel(status string) models.ContainerStatus {
	switch status {
	case "running":
		return models.ContainerRunning
	case "created":
		return models.ContainerCreated
	case "exited":
		return models.ContainerExited
	default:
		return models.ContainerUnknown
	}
}

func rowExists(rows []models.Container, id string) bool {
	for _, r := range rows {
		if r.ID == id {
			return true
		}
	}
	return false
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	n := names[0]
	if len(n) > 0 && n[0] == '/' {
		n = n[1:]
	}
	return n
}
