// hnswd serves an HNSW approximate-nearest-neighbor vector index over
// HTTP: insert, search, and periodic or on-demand mmap-backed
// snapshots.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/documind/hnswd/internal/api"
	"github.com/documind/hnswd/internal/config"
	"github.com/documind/hnswd/internal/index"
	"github.com/documind/hnswd/internal/storage"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hnswd",
		Short: "HNSW vector index service",
		Long:  "hnswd — an approximate nearest-neighbor vector index served over HTTP.",
	}

	var port int
	var m int
	var snapshotPath string
	var snapshotSize int64
	var snapshotInterval int
	var loadSnapshot bool

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().IntVar(&port, "port", 0, "port to listen on (0 = use config/default)")
	root.PersistentFlags().IntVar(&m, "m", 0, "max neighbors per graph layer (0 = use config/default)")
	root.PersistentFlags().StringVar(&snapshotPath, "snapshot-path", "", "mmap file backing snapshots")
	root.PersistentFlags().Int64Var(&snapshotSize, "snapshot-size", 0, "bytes to reserve for the snapshot file (0 = use config/default)")
	root.PersistentFlags().IntVar(&snapshotInterval, "snapshot-interval", -1, "seconds between automatic snapshots (0 disables, -1 = use config/default)")
	root.PersistentFlags().BoolVar(&loadSnapshot, "load-snapshot", false, "load the index from snapshot-path at startup")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}
			if m != 0 {
				cfg.M = m
			}
			if snapshotPath != "" {
				cfg.SnapshotPath = snapshotPath
			}
			if snapshotSize != 0 {
				cfg.SnapshotSize = snapshotSize
			}
			if snapshotInterval != -1 {
				cfg.SnapshotInterval = snapshotInterval
			}
			if loadSnapshot {
				cfg.LoadSnapshot = true
			}
			return runServe(cfg)
		},
	}

	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Load the snapshot file and rewrite it, reporting its encoded size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if snapshotPath != "" {
				cfg.SnapshotPath = snapshotPath
			}
			if snapshotSize != 0 {
				cfg.SnapshotSize = snapshotSize
			}
			return runSnapshot(cfg)
		},
	}

	root.AddCommand(serve)
	root.AddCommand(snapshot)

	if err := root.Execute(); err != nil {
		log.Fatalf("hnswd: %v", err)
	}
}

func runServe(cfg config.Config) error {
	file, err := storage.Open(cfg.SnapshotPath, cfg.SnapshotSize)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	var idx *index.Index
	if cfg.LoadSnapshot {
		idx, err = index.Load(file)
		if err != nil {
			log.Printf("hnswd: no usable snapshot at %s, starting empty index: %v", cfg.SnapshotPath, err)
		}
	}
	if idx == nil {
		indexCfg := index.DefaultConfig()
		indexCfg.M = cfg.M
		idx = index.New(indexCfg)
	}

	handler := api.NewHandler(idx, file)
	router := api.NewRouter(handler)

	if cfg.SnapshotInterval > 0 {
		go runSnapshotTicker(handler, time.Duration(cfg.SnapshotInterval)*time.Second)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("hnswd starting on %s", addr)
	log.Printf("graph: M=%d snapshot=%s (%d bytes)", cfg.M, cfg.SnapshotPath, cfg.SnapshotSize)
	log.Printf("endpoints:")
	log.Printf("  POST /insert   - index a vector")
	log.Printf("  POST /search   - find the nearest indexed vector")
	log.Printf("  POST /snapshot - persist the index to disk")
	log.Printf("  GET  /health   - liveness and vector count")
	log.Printf("  GET  /stats    - index statistics")

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("hnswd: server exited: %v", err)
	}
	return nil
}

// runSnapshot is the one-off `hnswd snapshot` verb: it opens the
// configured mmap file, loads whatever index is already there (an
// empty index if the file holds no valid snapshot yet), and writes it
// straight back out. This is useful as a standalone integrity check —
// index.Load validates the header and decodes the full payload — and
// as a way to force a snapshot without a running server.
func runSnapshot(cfg config.Config) error {
	file, err := storage.Open(cfg.SnapshotPath, cfg.SnapshotSize)
	if err != nil {
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	idx, err := index.Load(file)
	if err != nil {
		log.Printf("hnswd: no usable snapshot at %s, starting from an empty index: %v", cfg.SnapshotPath, err)
		idx = index.New(index.DefaultConfig())
	}

	written, err := index.Save(idx, file)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	log.Printf("hnswd: wrote %d bytes to %s (%d vectors)", written, cfg.SnapshotPath, idx.Len())
	return nil
}

// runSnapshotTicker periodically serializes the index to its mmap file.
// It runs as a detached goroutine for the lifetime of the process; a
// failed snapshot is fatal (the same contract POST /snapshot has),
// since it means the on-disk state is no longer trustworthy.
func runSnapshotTicker(handler *api.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		handler.Snapshot()
	}
}
