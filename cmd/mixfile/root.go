package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssd-technologies/mixfile/internal/config"
	"github.com/ssd-technologies/mixfile/internal/transfer"
	"github.com/ssd-technologies/mixfile/internal/uploader"
)

var (
	configPath string
	dataDir    string
	proxyURL   string
)

var rootCmd = &cobra.Command{
	Use:   "mixfile",
	Short: "Encrypted chunked file sharing over public image hosts",
	Long: `mixfile splits files into encrypted chunks disguised as images, uploads
them to a public host and hands back a single share code that is enough to
download the file again.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path of the config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data_dir from the config")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "override proxy from the config")
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if proxyURL != "" {
		cfg.Proxy = proxyURL
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return cfg, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// newService builds the transfer service described by cfg. idx may be nil.
func newService(cfg config.Config, idx transfer.IndexCache, onUp, onDown func(int)) (*transfer.Service, error) {
	client, err := uploader.NewHTTPClient(cfg.RequestTimeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}
	registry := uploader.NewRegistry(uploader.NewCustomBackend(cfg.CustomURL, cfg.CustomReferer, cfg.ChunkSize))
	return transfer.NewService(transfer.Options{
		Client:            client,
		Registry:          registry,
		Cache:             idx,
		Backend:           cfg.Uploader,
		UploadTaskCount:   cfg.UploadTask,
		DownloadTaskCount: cfg.DownloadTask,
		UploadRetry:       cfg.UploadRetry,
		ChunkSize:         cfg.ChunkSize,
		OnUploadData:      onUp,
		OnDownloadData:    onDown,
	}), nil
}
