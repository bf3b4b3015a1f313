package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/transfer"
)

var (
	uploadName      string
	uploadRecord    bool
	uploadShortCode bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a local file and print its share code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return err
		}

		name := uploadName
		if name == "" {
			name = filepath.Base(args[0])
		}
		svc, err := newService(cfg, nil, nil, nil)
		if err != nil {
			return err
		}
		info, err := svc.Upload(cmd.Context(), f, transfer.UploadRequest{Name: name, Size: st.Size()})
		if err != nil {
			return err
		}

		if uploadRecord {
			hist, err := history.Open(cfg.HistoryPath(), cfg.HistoryLimit)
			if err != nil {
				return err
			}
			if err := hist.Add(history.NewEntry(info)); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), info.ShareCode(uploadShortCode))
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "file name stored in the share code")
	uploadCmd.Flags().BoolVar(&uploadRecord, "history", true, "add the upload to the history list")
	uploadCmd.Flags().BoolVar(&uploadShortCode, "short", false, "print the invisible short form")
	rootCmd.AddCommand(uploadCmd)
}
