package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Antonite/deepq/server"
	"github.com/Antonite/deepq/storage"
)

func main() {
	var (
		addr   = flag.String("addr", ":8081", "listen address")
		cbAddr = flag.String("couchbase", "localhost", "couchbase connection string")
		cbUser = flag.String("couchbase-user", "", "couchbase username")
		cbPass = flag.String("couchbase-pass", "", "couchbase password")
	)
	flag.Parse()

	store, err := storage.Init(*cbAddr, *cbUser, *cbPass, 1)
	if err != nil {
		fmt.Println("failed to initialize storage")
		panic(err)
	}

	srv := server.New(store)

	http.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		srv.GetRunHandler(w, r)
	})

	http.HandleFunc("/checkpoint", func(w http.ResponseWriter, r *http.Request) {
		srv.GetCheckpointHandler(w, r)
	})

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		srv.HealthHandler(w, r)
	})

	go func() {
		log.Fatal(http.ListenAndServe(*addr, nil))
	}()
	fmt.Println("Server started   " + time.Now().Format("Mon Jan _2 15:04:05 2006"))

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan
	srv.Close()
}
