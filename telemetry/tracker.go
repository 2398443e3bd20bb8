package telemetry

import (
	"fmt"
	"time"

	"github.com/logrusorgru/aurora"

	"github.com/Antonite/deepq/agent"
)

// Tracker prints a colored progress line from the actor loop every LogFreq
// steps.
type Tracker struct {
	run         string
	monitor     *Monitor
	exploration agent.Schedule
	logFreq     int
	start       time.Time
}

func NewTracker(run string, monitor *Monitor, exploration agent.Schedule, logFreq int) *Tracker {
	return &Tracker{
		run:         run,
		monitor:     monitor,
		exploration: exploration,
		logFreq:     logFreq,
		start:       time.Now(),
	}
}

func (tr *Tracker) LogProgress(t int) {
	if tr.logFreq <= 0 || t%tr.logFreq != 0 {
		return
	}

	elapsed := time.Since(tr.start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}

	fmt.Print(aurora.Cyan(fmt.Sprintf("[%s] ", tr.run)))
	fmt.Printf("step %-9d", t)
	fmt.Print(aurora.Green(fmt.Sprintf("episodes %-7d", tr.monitor.Episodes())))
	fmt.Print(aurora.Yellow(fmt.Sprintf("mean reward %9.2f ", tr.monitor.MeanReward())))
	fmt.Print(aurora.Magenta(fmt.Sprintf("best %9.2f ", tr.monitor.BestMeanReward())))
	if tr.exploration != nil {
		fmt.Printf("eps %.3f ", tr.exploration.Value(t))
	}
	fmt.Printf("steps/s %.0f\n", float64(t)/elapsed)
}
