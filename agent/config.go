package agent

import "github.com/pkg/errors"

// ErrInvalidConfig reports a configuration the training loops cannot run.
var ErrInvalidConfig = errors.New("agent: invalid configuration")

// Config fixes the sizes and cadences of a training run. All frequencies
// count environment steps, which start at 1.
type Config struct {
	BufferCapacity int
	HistoryLen     int
	BatchSize      int
	// TrainStart delays the first optimization until this step so the
	// buffer holds enough transitions to sample from.
	TrainStart int
	TrainFreq  int
	// TargetSyncFreq must be a multiple of TrainFreq so syncs land on
	// steps that optimize.
	TargetSyncFreq int
	// CheckpointFreq of 0 disables checkpoints.
	CheckpointFreq int
	MaxSteps       int
	ObsLen         int
	ActionCount    int
	// Seed fixes the run's randomness; 0 seeds from the clock.
	Seed int64
}

func (c Config) Validate() error {
	if c.BufferCapacity <= 0 || c.HistoryLen <= 0 || c.BatchSize <= 0 ||
		c.TrainFreq <= 0 || c.TargetSyncFreq <= 0 || c.MaxSteps <= 0 ||
		c.ObsLen <= 0 || c.ActionCount <= 0 {
		return errors.Wrap(ErrInvalidConfig, "sizes and frequencies must be positive")
	}
	if c.TrainStart < 0 || c.CheckpointFreq < 0 {
		return errors.Wrap(ErrInvalidConfig, "trainStart and checkpointFreq must not be negative")
	}
	if c.BufferCapacity < c.HistoryLen {
		return errors.Wrapf(ErrInvalidConfig, "buffer capacity %d smaller than history length %d", c.BufferCapacity, c.HistoryLen)
	}
	if c.TargetSyncFreq%c.TrainFreq != 0 {
		return errors.Wrapf(ErrInvalidConfig, "target sync frequency %d is not a multiple of train frequency %d", c.TargetSyncFreq, c.TrainFreq)
	}
	return nil
}
