package storage

import (
	"fmt"
	"time"

	"github.com/golang/snappy"
)

// Snapshotter is the slice of the model the checkpointer needs.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

// Stats supplies episode tallies for checkpoint metadata.
type Stats interface {
	Episodes() int
	MeanReward() float64
	BestMeanReward() float64
}

// Checkpointer snapshots the model at the training cadence and queues the
// result for the save workers. It runs on the learner goroutine, so the
// snapshot itself happens while nothing else touches the model; only the
// enqueue crosses goroutines.
type Checkpointer struct {
	store *Store
	run   string
	model Snapshotter
	stats Stats
}

// NewCheckpointer wires a model and optional stats source to a store.
func NewCheckpointer(store *Store, run string, model Snapshotter, stats Stats) *Checkpointer {
	return &Checkpointer{store: store, run: run, model: model, stats: stats}
}

func (c *Checkpointer) SaveCheckpoint(t int) {
	weights, err := c.model.Snapshot()
	if err != nil {
		fmt.Printf("failed to snapshot model at step %d: %v\n", t, err)
		return
	}

	ck := Checkpoint{
		Run:     c.run,
		Step:    t,
		SavedAt: time.Now(),
		Weights: snappy.Encode(nil, weights),
	}
	if c.stats != nil {
		ck.Episodes = c.stats.Episodes()
		ck.MeanReward = c.stats.MeanReward()
		ck.BestReward = c.stats.BestMeanReward()
	}
	c.store.Enqueue(ck)
}

// DecodeWeights decompresses a checkpoint's model snapshot.
func DecodeWeights(ck *Checkpoint) ([]byte, error) {
	return snappy.Decode(nil, ck.Weights)
}
