// Package livestatus publishes reduction progress to Redis so dashboards
// and beamline operators can watch a run move through the pipeline.
package livestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/redis/go-redis/v9"
)

type State string

const (
	StateQueued   State = "queued"
	StateReducing State = "reducing"
	StateFitting  State = "fitting"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// entries expire so a crashed pipeline doesn't leave runs stuck on the board
const statusTTL = 24 * time.Hour

type Status struct {
	RunNumber int       `json:"run_number"`
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"` // error text for failed runs
	Progress  float64   `json:"progress"`         // 0..1 within the current state
	UpdatedAt time.Time `json:"updated_at"`
}

type Board struct {
	client *redis.Client
}

func New(redisAddr string) *Board {
	return &Board{
		client: redis.NewClient(&redis.Options{Addr: redisAddr}),
	}
}

func (b *Board) Close() error {
	return b.client.Close()
}

func runKey(runNumber int) string {
	return fmt.Sprintf("hidra:run:%d", runNumber)
}

func (b *Board) Set(ctx context.Context, runNumber int, state State, progress float64, detail string) error {
	status := Status{
		RunNumber: runNumber,
		State:     state,
		Detail:    detail,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	}

	serialized, err := json.Marshal(status)
	if err != nil {
		return err
	}

	if err := b.client.Set(ctx, runKey(runNumber), serialized, statusTTL).Err(); err != nil {
		return fmt.Errorf("livestatus: run %d: %w", runNumber, err)
	}

	return nil
}

func (b *Board) Get(ctx context.Context, runNumber int) (*Status, error) {
	serialized, err := b.client.Get(ctx, runKey(runNumber)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("livestatus: no status for run %d", runNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("livestatus: run %d: %w", runNumber, err)
	}

	status := &Status{}
	if err := json.Unmarshal(serialized, status); err != nil {
		return nil, err
	}

	return status, nil
}

// the most recently reduced pattern of a run, for live plotting
func (b *Board) SetLatestPattern(ctx context.Context, runNumber int, subRun hidra.SubRun, pattern *hidra.Pattern) error {
	serialized, err := json.Marshal(pattern)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("hidra:pattern:%d:%s", runNumber, subRun)
	if err := b.client.Set(ctx, key, serialized, statusTTL).Err(); err != nil {
		return fmt.Errorf("livestatus: pattern for run %d: %w", runNumber, err)
	}

	return nil
}

func (b *Board) LatestPattern(ctx context.Context, runNumber int, subRun hidra.SubRun) (*hidra.Pattern, error) {
	key := fmt.Sprintf("hidra:pattern:%d:%s", runNumber, subRun)

	serialized, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("livestatus: no pattern for run %d sub run %s", runNumber, subRun)
	}
	if err != nil {
		return nil, err
	}

	pattern := &hidra.Pattern{}
	if err := json.Unmarshal(serialized, pattern); err != nil {
		return nil, err
	}

	return pattern, nil
}
