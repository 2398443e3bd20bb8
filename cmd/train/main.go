package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Antonite/deepq/agent"
	"github.com/Antonite/deepq/env"
	"github.com/Antonite/deepq/qnet"
	"github.com/Antonite/deepq/schedule"
	"github.com/Antonite/deepq/storage"
	"github.com/Antonite/deepq/telemetry"
)

func main() {
	var (
		envName    = flag.String("env", "cartpole", "[cartpole,oware]")
		steps      = flag.Int("steps", 200000, "environment steps to run")
		capacity   = flag.Int("capacity", 50000, "replay buffer capacity")
		history    = flag.Int("history", 4, "frames stacked into one state")
		batch      = flag.Int("batch", 32, "transitions per optimization")
		trainStart = flag.Int("train-start", 1000, "step of the first optimization")
		trainFreq  = flag.Int("train-freq", 4, "steps between optimizations")
		syncFreq   = flag.Int("sync-freq", 1000, "steps between target refreshes")
		ckptFreq   = flag.Int("checkpoint-freq", 10000, "steps between checkpoints")
		hidden     = flag.Int("hidden", 64, "hidden layer size")
		gamma      = flag.Float64("gamma", 0.99, "discount factor")
		rate       = flag.Float64("rate", 0.001, "learning rate")
		epsEnd     = flag.Float64("eps-end", 0.02, "final exploration rate")
		epsSteps   = flag.Int("eps-steps", 50000, "steps to anneal exploration over")
		logFreq    = flag.Int("log-freq", 2000, "steps between progress lines")
		seed       = flag.Int64("seed", 0, "rng seed, 0 uses the clock")
		chart      = flag.String("chart", "", "write an episode reward chart to this html file")
		cbAddr     = flag.String("couchbase", "", "couchbase connection string, empty disables checkpoints")
		cbUser     = flag.String("couchbase-user", "", "couchbase username")
		cbPass     = flag.String("couchbase-pass", "", "couchbase password")
		cbWorkers  = flag.Int("save-workers", 4, "checkpoint save workers")
		resume     = flag.String("resume", "", "run id to load the latest checkpoint from")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var (
		environment agent.Environment
		obsLen      int
		actions     int
	)
	switch *envName {
	case "cartpole":
		environment = env.NewCartPole(*seed)
		obsLen = env.CartPoleObsLen
		actions = env.CartPoleActions
	case "oware":
		environment = env.NewOware(*seed)
		obsLen = env.OwareObsLen
		actions = env.OwareActions
	default:
		flag.Usage()
		return
	}

	model, err := qnet.New(*history*obsLen, *hidden, actions, *gamma, *seed)
	if err != nil {
		panic(err)
	}

	var store *storage.Store
	if *cbAddr != "" {
		store, err = storage.Init(*cbAddr, *cbUser, *cbPass, *cbWorkers)
		if err != nil {
			fmt.Println("failed to initialize storage")
			panic(err)
		}
	}

	if *resume != "" {
		if store == nil {
			panic("resume requires a couchbase connection")
		}
		ck, err := store.Latest(*resume)
		if err != nil {
			panic(err)
		}
		weights, err := storage.DecodeWeights(ck)
		if err != nil {
			panic(err)
		}
		if err := model.Restore(weights); err != nil {
			panic(err)
		}
		fmt.Printf("resumed run %s from step %d\n", ck.Run, ck.Step)
	}

	run := uuid.NewString()
	cfg := agent.Config{
		BufferCapacity: *capacity,
		HistoryLen:     *history,
		BatchSize:      *batch,
		TrainStart:     *trainStart,
		TrainFreq:      *trainFreq,
		TargetSyncFreq: *syncFreq,
		CheckpointFreq: *ckptFreq,
		MaxSteps:       *steps,
		ObsLen:         obsLen,
		ActionCount:    actions,
		Seed:           *seed,
	}

	monitor := telemetry.Wrap(environment)
	exploration := schedule.Linear{Start: 1, End: *epsEnd, Steps: *epsSteps}

	a, err := agent.New(cfg, model, monitor, exploration, schedule.Const(*rate))
	if err != nil {
		panic(err)
	}
	a.Telemetry = telemetry.NewTracker(run, monitor, exploration, *logFreq)
	if store != nil {
		a.Checkpoints = storage.NewCheckpointer(store, run, model, monitor)
	}

	fmt.Printf("starting run %s on %s for %d steps\n", run, *envName, *steps)
	a.Run()

	if store != nil {
		store.Close()
	}

	fmt.Printf("finished run %s: %d episodes, best mean reward %.2f\n",
		run, monitor.Episodes(), monitor.BestMeanReward())

	if *chart != "" {
		if err := telemetry.WriteChart(*chart, *envName+" "+run, monitor.EpisodeRewards()); err != nil {
			panic(err)
		}
		fmt.Println("wrote " + *chart)
	}
}
