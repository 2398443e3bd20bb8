package storage

import (
	"bytes"
	"errors"
	"testing"
)

var errSnapshot = errors.New("snapshot failed")

type fakeModel struct {
	payload []byte
	fail    bool
}

func (m fakeModel) Snapshot() ([]byte, error) {
	if m.fail {
		return nil, errSnapshot
	}
	return m.payload, nil
}

type fakeStats struct{}

func (fakeStats) Episodes() int           { return 12 }
func (fakeStats) MeanReward() float64     { return 87.5 }
func (fakeStats) BestMeanReward() float64 { return 92.25 }

func TestSaveCheckpointQueuesCompressedSnapshot(t *testing.T) {
	s := &Store{saves: make(chan Checkpoint, 2)}
	c := NewCheckpointer(s, "run-1", fakeModel{payload: []byte("weights-bytes")}, fakeStats{})

	c.SaveCheckpoint(400)

	var ck Checkpoint
	select {
	case ck = <-s.saves:
	default:
		t.Fatal("no checkpoint was queued")
	}

	if ck.Run != "run-1" || ck.Step != 400 {
		t.Errorf("checkpoint identity = %s/%d, want run-1/400", ck.Run, ck.Step)
	}
	if ck.Episodes != 12 || ck.MeanReward != 87.5 || ck.BestReward != 92.25 {
		t.Errorf("checkpoint stats = %d/%v/%v, want 12/87.5/92.25", ck.Episodes, ck.MeanReward, ck.BestReward)
	}
	if ck.SavedAt.IsZero() {
		t.Error("checkpoint has no timestamp")
	}

	weights, err := DecodeWeights(&ck)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(weights, []byte("weights-bytes")) {
		t.Errorf("decoded weights = %q, want %q", weights, "weights-bytes")
	}
}

func TestSaveCheckpointSkipsFailedSnapshot(t *testing.T) {
	s := &Store{saves: make(chan Checkpoint, 2)}
	c := NewCheckpointer(s, "run-1", fakeModel{fail: true}, nil)

	c.SaveCheckpoint(100)

	select {
	case ck := <-s.saves:
		t.Fatalf("failed snapshot still queued checkpoint %v", ck)
	default:
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	s := &Store{saves: make(chan Checkpoint, 1)}
	s.Enqueue(Checkpoint{Step: 1})
	s.Enqueue(Checkpoint{Step: 2})

	ck := <-s.saves
	if ck.Step != 1 {
		t.Errorf("first queued checkpoint step = %d, want 1", ck.Step)
	}
	select {
	case ck := <-s.saves:
		t.Fatalf("overflow checkpoint was queued: %v", ck)
	default:
	}
}
