package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Antonite/deepq/storage"
)

// CheckpointResponse is a checkpoint without its weight payload, which is
// too large to ship on a status endpoint.
type CheckpointResponse struct {
	Run         string
	Step        int
	Episodes    int
	MeanReward  float64
	BestReward  float64
	SavedAt     time.Time
	WeightBytes int
}

func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS,POST,PUT")
	w.Header().Set("Access-Control-Allow-Headers", "Access-Control-Allow-Headers, Origin,Accept, X-Requested-With, Content-Type, Access-Control-Request-Method, Access-Control-Request-Headers")

	run := r.URL.Query().Get("run")
	if run == "" {
		http.Error(w, "run is a required param", http.StatusBadRequest)
		return
	}

	meta, err := s.store.Run(run)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	js, err := json.Marshal(meta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

func (s *Server) GetCheckpointHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS,POST,PUT")
	w.Header().Set("Access-Control-Allow-Headers", "Access-Control-Allow-Headers, Origin,Accept, X-Requested-With, Content-Type, Access-Control-Request-Method, Access-Control-Request-Headers")

	run := r.URL.Query().Get("run")
	if run == "" {
		http.Error(w, "run is a required param", http.StatusBadRequest)
		return
	}

	var ck *storage.Checkpoint
	var err error
	if stepParam := r.URL.Query().Get("step"); stepParam != "" {
		step, perr := strconv.Atoi(stepParam)
		if perr != nil {
			http.Error(w, "step must be an integer", http.StatusBadRequest)
			return
		}
		ck, err = s.store.Get(run, step)
	} else {
		ck, err = s.store.Latest(run)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	js, err := json.Marshal(&CheckpointResponse{
		Run:         ck.Run,
		Step:        ck.Step,
		Episodes:    ck.Episodes,
		MeanReward:  ck.MeanReward,
		BestReward:  ck.BestReward,
		SavedAt:     ck.SavedAt,
		WeightBytes: len(ck.Weights),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
