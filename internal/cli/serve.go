package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hill/internal/config"
	"hill/internal/engine"
	"hill/internal/logger"
	"hill/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open this node's PM arena, WAL and index, and start the wire-protocol server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "hill.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		log := logger.New(logFile, logger.INFO)

		store, err := engine.Open(storeOptions(cfg), log)
		if err != nil {
			return err
		}
		defer store.Close()

		srv, err := server.New(cfg, store, log)
		if err != nil {
			return err
		}

		log.Infof("hill: node %d serving on %s", cfg.NodeID, cfg.Addr)
		return srv.Listen()
	},
}

func storeOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		NodeID:    cfg.NodeID,
		Degree:    cfg.Degree,
		PMSize:    cfg.PMSize,
		WALRegion: cfg.WALRegion,
		ArenaPath: filepath.Join(cfg.DataDir, "arena.pm"),
		WALPath:   filepath.Join(cfg.DataDir, "wal.pm"),
	}
}
