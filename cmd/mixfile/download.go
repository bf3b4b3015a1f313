package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <share code>",
	Short: "Download a shared file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := share.Parse(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := newService(cfg, nil, nil, nil)
		if err != nil {
			return err
		}

		out := downloadOutput
		if out == "" {
			out = webdav.SanitizeName(info.FileName)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		log.Printf("Downloading %s (%d bytes) to %s", info.FileName, info.FileSize, out)
		if err := svc.DownloadAll(cmd.Context(), f, info); err != nil {
			f.Close()
			os.Remove(out)
			return err
		}
		return f.Close()
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output path, defaults to the shared file name")
	rootCmd.AddCommand(downloadCmd)
}
