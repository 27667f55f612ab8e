package services

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/log"
	"kakeibo/internal/remote"
	"kakeibo/internal/storage"
)

// SyncService performs the explicit bulk operations: pushing the whole
// local set to the remote store, and pulling the remote set over the
// local one. These are the only paths where the remote acts as a
// source of truth, and only because the user asked for it.
type SyncService struct {
	repo   *storage.SQLiteRepository
	bridge *remote.Bridge
}

func NewSyncService(repo *storage.SQLiteRepository, bridge *remote.Bridge) *SyncService {
	return &SyncService{repo: repo, bridge: bridge}
}

// Config returns the persisted sync configuration.
func (s *SyncService) Config(ctx context.Context) (storage.SyncConfig, error) {
	return s.repo.GetSyncConfig(ctx)
}

// SaveConfig persists a new sync configuration and applies it to the
// bridge atomically.
func (s *SyncService) SaveConfig(ctx context.Context, cfg storage.SyncConfig) error {
	if err := s.repo.SaveSyncConfig(ctx, cfg); err != nil {
		return err
	}
	s.bridge.Reconfigure(remote.Config{Enabled: cfg.Enabled, Endpoint: cfg.Endpoint})
	return nil
}

// PushAll replaces the entire remote set with the local one and
// returns the remote-reported count.
func (s *SyncService) PushAll(ctx context.Context) (int, error) {
	records, err := s.repo.ListAllRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("list local records: %w", err)
	}

	n, err := s.bridge.PushSyncAll(ctx, records)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Pushed full record set to remote", log.FieldCount, n)
	return n, nil
}

// PullAll replaces the local record set with the remote one. On any
// remote failure the local store is left untouched.
func (s *SyncService) PullAll(ctx context.Context) (int, error) {
	records, err := s.bridge.FetchAll(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.repo.ReplaceAllRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("install remote records: %w", err)
	}

	slog.InfoContext(ctx, "Pulled full record set from remote", log.FieldCount, len(records))
	return len(records), nil
}

// Reset wipes all local state back to first-run defaults. The remote
// store is not touched.
func (s *SyncService) Reset(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return err
	}
	cfg, err := s.repo.GetSyncConfig(ctx)
	if err != nil {
		return err
	}
	s.bridge.Reconfigure(remote.Config{Enabled: cfg.Enabled, Endpoint: cfg.Endpoint})
	return nil
}
