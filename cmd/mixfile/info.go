package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssd-technologies/mixfile/internal/share"
)

var infoIndex bool

var infoCmd = &cobra.Command{
	Use:   "info <share code>",
	Short: "Show what a share code points to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := share.Parse(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "name:    %s\n", info.FileName)
		fmt.Fprintf(w, "size:    %d\n", info.FileSize)
		fmt.Fprintf(w, "type:    %s\n", info.ContentType())
		fmt.Fprintf(w, "index:   %s\n", info.URL)
		if !infoIndex {
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := newService(cfg, nil, nil, nil)
		if err != nil {
			return err
		}
		mf, err := svc.FetchIndex(cmd.Context(), info, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "chunks:  %d x %d bytes\n", len(mf.FileList), mf.ChunkSize)
		fmt.Fprintf(w, "version: %d\n", mf.Version)
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoIndex, "index", false, "also fetch the file index")
	rootCmd.AddCommand(infoCmd)
}
