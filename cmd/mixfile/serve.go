package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssd-technologies/mixfile/internal/cache"
	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/server"
	"github.com/ssd-technologies/mixfile/internal/storage"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebDAV server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := storage.NewDB(cfg.StatsPath())
		if err != nil {
			return err
		}
		defer db.Close()
		recorder := storage.NewRecorder(db)

		idx, err := cache.Open(cfg.CachePath())
		if err != nil {
			return err
		}
		defer idx.Close()

		hist, err := history.Open(cfg.HistoryPath(), cfg.HistoryLimit)
		if err != nil {
			return err
		}

		svc, err := newService(cfg, idx, recorder.AddUploaded, recorder.AddDownloaded)
		if err != nil {
			return err
		}

		tree := webdav.NewTree(cfg.WebDAVPath())
		go func() {
			if err := tree.Load(); err != nil {
				log.Printf("[webdav] load failed, webdav stays unavailable: %v", err)
			}
		}()

		srv := server.New(server.Options{
			Service:  svc,
			Tree:     tree,
			History:  hist,
			DB:       db,
			Recorder: recorder,
			Cache:    idx,
			Password: cfg.Password,
		})
		srv.RecoverTransfers()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		srv.StartWorkers(ctx)

		httpSrv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           srv,
			ReadHeaderTimeout: 30 * time.Second,
		}
		go func() {
			<-ctx.Done()
			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		log.Printf("mixfile running on http://%s", cfg.Addr())
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		if tree.Loaded() {
			if err := tree.Save(); err != nil {
				log.Printf("[webdav] save on shutdown: %v", err)
			}
		}
		if err := recorder.Flush(time.Now()); err != nil {
			log.Printf("[stats] flush on shutdown: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
