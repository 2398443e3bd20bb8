package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Antonite/deepq/agent"
	"github.com/Antonite/deepq/env"
	"github.com/Antonite/deepq/qnet"
	"github.com/Antonite/deepq/schedule"
	"github.com/Antonite/deepq/telemetry"
)

func main() {
	fmt.Println("starting deepq cartpole training...")

	run := uuid.NewString()
	seed := time.Now().UnixNano()

	cfg := agent.Config{
		BufferCapacity: 50000,
		HistoryLen:     4,
		BatchSize:      32,
		TrainStart:     1000,
		TrainFreq:      4,
		TargetSyncFreq: 1000,
		MaxSteps:       200000,
		ObsLen:         env.CartPoleObsLen,
		ActionCount:    env.CartPoleActions,
		Seed:           seed,
	}

	model, err := qnet.New(cfg.HistoryLen*cfg.ObsLen, 64, cfg.ActionCount, 0.99, seed)
	if err != nil {
		panic(err)
	}

	monitor := telemetry.Wrap(env.NewCartPole(seed))
	exploration := schedule.Linear{Start: 1, End: 0.02, Steps: 50000}

	a, err := agent.New(cfg, model, monitor, exploration, schedule.Const(0.001))
	if err != nil {
		panic(err)
	}
	a.Telemetry = telemetry.NewTracker(run, monitor, exploration, 2000)

	a.Run()

	fmt.Printf("finished run %s: %d episodes, best mean reward %.2f\n",
		run, monitor.Episodes(), monitor.BestMeanReward())

	if err := telemetry.WriteChart("rewards.html", "cartpole "+run, monitor.EpisodeRewards()); err != nil {
		panic(err)
	}
	fmt.Println("wrote rewards.html")
}
