package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snipserve/internal/config"
	"snipserve/internal/dirs"
	"snipserve/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (yt-dlp/youtube-dl, ffmpeg)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(viper.GetViper())
			w := cmd.OutOrStdout()

			var missing []error
			dl, derr := deps.FindDownloader(cfg.DLBinary)
			if derr != nil {
				missing = append(missing, derr)
				dl = "missing (YouTube links still work through the built-in client)"
			}
			ff, ferr := deps.FindFFmpeg(cfg.FFmpegPath)
			ffDesc := ff.Path
			switch {
			case ferr != nil:
				missing = append(missing, ferr)
				ffDesc = "missing (MP3 downloads disabled)"
			case !ff.InPATH:
				ffDesc += " (bundled)"
			}

			fmt.Fprintf(w, "Downloader: %s\n", dl)
			fmt.Fprintf(w, "FFmpeg:     %s\n", ffDesc)
			if p := viper.ConfigFileUsed(); p != "" {
				fmt.Fprintf(w, "Config:     %s\n", p)
			}
			if tmp, err := dirs.TempBaseDir(); err == nil {
				fmt.Fprintf(w, "Cache:      %s\n", tmp)
			}
			if len(missing) > 0 {
				return &ExitError{Code: ExitMissingDep, Err: errors.Join(missing...)}
			}
			return nil
		},
	}
}
