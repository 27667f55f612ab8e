package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

var (
	// ErrSyncDisabled marks a bridge call that was skipped because
	// mirroring is disabled or no endpoint is configured. It is a
	// no-op outcome, not a failure.
	ErrSyncDisabled = errors.New("remote sync disabled")

	// ErrRemoteUnavailable marks any transport, parse, or
	// remote-reported failure. It never propagates as a failure of
	// the local operation that triggered the call.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// Config is the mirroring configuration owned by the Bridge. Both
// fields persist across sessions; failures never flip Enabled
// automatically.
type Config struct {
	Enabled  bool
	Endpoint string
}

func (c Config) active() bool {
	return c.Enabled && c.Endpoint != ""
}

// Bridge mirrors local mutations to a remote record store over the
// CRUD-over-HTTP contract. Every call is a single independent
// round trip; the caller decides whether to wait for the outcome.
type Bridge struct {
	cfg    atomic.Pointer[Config]
	client *http.Client
}

// NewBridge builds a bridge with the given configuration. The
// configuration can be swapped at any time with Reconfigure.
func NewBridge(cfg Config) *Bridge {
	b := &Bridge{
		client: &http.Client{Timeout: 15 * time.Second},
	}
	b.cfg.Store(&cfg)
	return b
}

// Reconfigure atomically replaces the bridge configuration. In-flight
// calls finish against the configuration they started with.
func (b *Bridge) Reconfigure(cfg Config) {
	b.cfg.Store(&cfg)
	slog.Info("Remote bridge reconfigured",
		log.FieldComponent, log.ComponentRemote,
		"enabled", cfg.Enabled,
		"has_endpoint", cfg.Endpoint != "")
}

// Config returns the current configuration.
func (b *Bridge) Config() Config {
	return *b.cfg.Load()
}

// FetchAll retrieves the remote store's full record set.
func (b *Bridge) FetchAll(ctx context.Context) ([]core.Record, error) {
	cfg := b.Config()
	if !cfg.active() {
		return nil, ErrSyncDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRemoteUnavailable, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var body fetchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: remote error: %s", ErrRemoteUnavailable, body.Error)
	}
	return body.Records, nil
}

// PushAdd mirrors a single addition.
func (b *Bridge) PushAdd(ctx context.Context, rec core.Record) error {
	_, err := b.post(ctx, mutationRequest{Action: ActionAdd, Record: &rec})
	return err
}

// PushUpdate mirrors a full-record replacement by id.
func (b *Bridge) PushUpdate(ctx context.Context, rec core.Record) error {
	_, err := b.post(ctx, mutationRequest{Action: ActionUpdate, Record: &rec})
	return err
}

// PushDelete mirrors a single deletion by id.
func (b *Bridge) PushDelete(ctx context.Context, id string) error {
	_, err := b.post(ctx, mutationRequest{Action: ActionDelete, ID: id})
	return err
}

// PushSyncAll replaces the entire remote set with the given one and
// returns the remote-reported count.
func (b *Bridge) PushSyncAll(ctx context.Context, records []core.Record) (int, error) {
	if records == nil {
		records = []core.Record{}
	}
	resp, err := b.post(ctx, mutationRequest{Action: ActionSync, Records: records})
	if err != nil {
		return 0, err
	}
	if resp.Result == nil {
		return 0, nil
	}
	return resp.Result.Synced, nil
}

const maxResponseBytes = 8 << 20

func (b *Bridge) post(ctx context.Context, reqBody mutationRequest) (*mutationResponse, error) {
	cfg := b.Config()
	if !cfg.active() {
		return nil, ErrSyncDisabled
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrRemoteUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var body mutationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: remote error (%s): %s", ErrRemoteUnavailable, reqBody.Action, body.Error)
	}
	return &body, nil
}
