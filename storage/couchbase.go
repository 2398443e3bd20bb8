package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/pkg/errors"
)

const (
	// Not concerned about exposing defaults for this use case
	defaultUser = "deepq"
	defaultPass = "deepqrl"

	bucketName     = "deepq"
	scopeName      = "training"
	collectionName = "checkpoints"

	saveQueue  = 64
	maxRetries = 20
)

// Checkpoint is one saved training state. Weights hold the model snapshot
// compressed with snappy.
type Checkpoint struct {
	Run        string    `json:"run"`
	Step       int       `json:"step"`
	Episodes   int       `json:"episodes"`
	MeanReward float64   `json:"mean_reward"`
	BestReward float64   `json:"best_reward"`
	SavedAt    time.Time `json:"saved_at"`
	Weights    []byte    `json:"weights"`
}

// RunMeta tracks the newest checkpoint of a run.
type RunMeta struct {
	Run        string    `json:"run"`
	LatestStep int       `json:"latest_step"`
	Episodes   int       `json:"episodes"`
	MeanReward float64   `json:"mean_reward"`
	BestReward float64   `json:"best_reward"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists checkpoints in couchbase. Saves go through a buffered
// channel drained by background workers so the training loop never waits
// on the cluster.
type Store struct {
	checkpoints *gocb.Collection
	saves       chan Checkpoint
	wg          sync.WaitGroup
}

// Init connects to the cluster and starts the save workers.
func Init(addr, user, pass string, workers int) (*Store, error) {
	if user == "" {
		user = defaultUser
	}
	if pass == "" {
		pass = defaultPass
	}

	cluster, err := gocb.Connect(
		addr,
		gocb.ClusterOptions{
			Username:             user,
			Password:             pass,
			CircuitBreakerConfig: gocb.CircuitBreakerConfig{Disabled: true},
		})
	if err != nil {
		return nil, err
	}

	bucket := cluster.Bucket(bucketName)
	if err := bucket.WaitUntilReady(5*time.Second, nil); err != nil {
		return nil, err
	}

	s := &Store{
		checkpoints: bucket.Scope(scopeName).Collection(collectionName),
		saves:       make(chan Checkpoint, saveQueue),
	}

	if workers < 1 {
		workers = 1
	}
	s.wg.Add(workers)
	for w := 1; w <= workers; w++ {
		go s.process(w)
	}

	return s, nil
}

// Close stops accepting saves and waits for the workers to drain the
// queue.
func (s *Store) Close() {
	close(s.saves)
	s.wg.Wait()
	fmt.Println("Closed checkpoint store")
}

// Enqueue hands a checkpoint to the save workers without blocking the
// caller. When the queue is full the checkpoint is dropped with a warning.
func (s *Store) Enqueue(ck Checkpoint) {
	select {
	case s.saves <- ck:
	default:
		fmt.Printf("save queue full, dropping checkpoint for run %s step %d\n", ck.Run, ck.Step)
	}
}

// Get fetches one checkpoint by run and step.
func (s *Store) Get(run string, step int) (*Checkpoint, error) {
	r, err := s.get(checkpointKey(run, step))
	if err != nil {
		return nil, err
	}

	var ck Checkpoint
	if err := r.Content(&ck); err != nil {
		return nil, errors.Wrap(err, "storage: decode checkpoint")
	}
	return &ck, nil
}

// Run fetches a run's metadata.
func (s *Store) Run(run string) (*RunMeta, error) {
	r, err := s.get(runKey(run))
	if err != nil {
		return nil, err
	}

	var meta RunMeta
	if err := r.Content(&meta); err != nil {
		return nil, errors.Wrap(err, "storage: decode run metadata")
	}
	return &meta, nil
}

// Latest fetches the newest checkpoint of a run.
func (s *Store) Latest(run string) (*Checkpoint, error) {
	meta, err := s.Run(run)
	if err != nil {
		return nil, err
	}
	return s.Get(run, meta.LatestStep)
}

func (s *Store) process(id int) {
	defer s.wg.Done()
	for ck := range s.saves {
		if err := s.save(ck); err != nil {
			fmt.Printf("worker %d failed to save checkpoint %s/%d: %v\n", id, ck.Run, ck.Step, err)
		}
	}
}

// save upserts the checkpoint document, then advances the run's metadata
// under its CAS lock.
func (s *Store) save(ck Checkpoint) error {
	if err := s.upsert(checkpointKey(ck.Run, ck.Step), ck); err != nil {
		return err
	}
	return s.advanceRun(ck)
}

func (s *Store) advanceRun(ck Checkpoint) error {
	meta := RunMeta{
		Run:        ck.Run,
		LatestStep: ck.Step,
		Episodes:   ck.Episodes,
		MeanReward: ck.MeanReward,
		BestReward: ck.BestReward,
		UpdatedAt:  ck.SavedAt,
	}

	key := runKey(ck.Run)
	r, err := s.checkpoints.GetAndLock(key, 15*time.Second, nil)
	if err != nil {
		// First checkpoint of the run.
		return s.insert(key, meta)
	}

	cas := r.Cas()
	var cur RunMeta
	if err := r.Content(&cur); err != nil {
		s.unlock(key, cas)
		return errors.Wrap(err, "storage: decode run metadata")
	}
	// Workers may finish out of order; the metadata only moves forward.
	if cur.LatestStep >= ck.Step {
		s.unlock(key, cas)
		return nil
	}
	return s.replace(key, cas, meta)
}

func (s *Store) get(key string) (*gocb.GetResult, error) {
	retries := 1
	for {
		r, err := s.checkpoints.Get(key, nil)
		if err == nil {
			return r, nil
		}

		switch err.(type) {
		case *gocb.KeyValueError:
			return nil, err
		default:
		}

		retries++
		time.Sleep(time.Millisecond * 100 * time.Duration(retries))
		if retries > maxRetries {
			return nil, err
		}
	}
}

func (s *Store) upsert(key string, doc interface{}) error {
	retries := 1
	for {
		_, err := s.checkpoints.Upsert(key, doc, nil)
		if err == nil {
			return nil
		}

		retries++
		time.Sleep(time.Millisecond * 100 * time.Duration(retries))
		if retries > maxRetries {
			return err
		}
	}
}

func (s *Store) insert(key string, doc interface{}) error {
	retries := 1
	for {
		_, err := s.checkpoints.Insert(key, doc, nil)
		if err == nil {
			return nil
		}

		retries++
		time.Sleep(time.Millisecond * 100 * time.Duration(retries))
		if retries > maxRetries {
			return err
		}
	}
}

func (s *Store) replace(key string, cas gocb.Cas, doc interface{}) error {
	retries := 1
	for {
		_, err := s.checkpoints.Replace(key, doc, &gocb.ReplaceOptions{Cas: cas})
		if err == nil {
			return nil
		}

		retries++
		time.Sleep(time.Millisecond * 100 * time.Duration(retries))
		if retries > maxRetries {
			return err
		}
	}
}

func (s *Store) unlock(key string, cas gocb.Cas) {
	if cas == 0 {
		return
	}
	if err := s.checkpoints.Unlock(key, cas, nil); err != nil {
		fmt.Printf("failed to unlock %s: %v\n", key, err)
	}
}

func checkpointKey(run string, step int) string {
	return fmt.Sprintf("ckpt:%s:%d", run, step)
}

func runKey(run string) string {
	return fmt.Sprintf("run:%s", run)
}
