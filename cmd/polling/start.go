package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling"
	"github.com/axiomesh/polling/ledger"
	"github.com/axiomesh/polling/repo"
	"github.com/axiomesh/polling/watcher"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	var client watcher.Client
	if r.Config.DialUrl != "" {
		client, err = ethclient.DialContext(ctx.Context, r.Config.DialUrl)
		if err != nil {
			return err
		}
	} else {
		// the local ledger is locked while watching, only its history is seen
		db, err := leveldb.New(r.LedgerPath())
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer db.Close()
		client = ledger.New(db, log.New())
	}

	if r.Config.Metrics.Enable {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(r.Config.Metrics.ListenAddr, mux); err != nil {
				fmt.Printf("metrics server stopped: %s\n", err)
			}
		}()
	}

	w, err := watcher.New(ctx.Context, r.Config, client)
	if err != nil {
		return fmt.Errorf("new watcher error: %w", err)
	}

	if err := startWatcher(w); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(w, &wg)

	fmt.Println("=============Polling watcher is ready=============")

	wg.Wait()

	return nil
}

// startWatcher starts w, a watcher that fails to start is stopped so its
// store is released.
func startWatcher(w *watcher.Watcher) error {
	if err := w.Start(); err != nil {
		if stopErr := w.Stop(); stopErr != nil {
			fmt.Printf("stop watcher: %s\n", stopErr)
		}
		return fmt.Errorf("start watcher failed: %w", err)
	}
	return nil
}

func printVersion() {
	fmt.Printf("Polling version: %s-%s-%s\n", polling.CurrentVersion, polling.CurrentBranch, polling.CurrentCommit)
	fmt.Printf("App build date: %s\n", polling.BuildDate)
	fmt.Printf("System version: %s\n", polling.Platform)
	fmt.Printf("Golang version: %s\n", polling.GoVersion)
	fmt.Println()
}

func handleShutdown(w *watcher.Watcher, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if err := w.Stop(); err != nil {
			fmt.Printf("stop watcher: %s\n", err)
		}
		wg.Done()
	}()
}
