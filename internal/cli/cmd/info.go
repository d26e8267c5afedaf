package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"snipserve/internal/model"
)

type infoOutput struct {
	model.VideoInfo
	Formats []model.FormatOption `json:"formats,omitempty"`
}

func newInfoCmd() *cobra.Command {
	var withFormats bool
	cmd := &cobra.Command{
		Use:           "info <url>",
		Short:         "Print metadata for a URL as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(true)
			if err != nil {
				return err
			}
			defer e.close()

			out := infoOutput{}
			out.VideoInfo, err = e.svc.Info(cmd.Context(), args[0])
			if err != nil {
				return exitFor(err)
			}
			if withFormats {
				out.Formats, err = e.svc.Formats(cmd.Context(), args[0])
				if err != nil {
					return exitFor(err)
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withFormats, "formats", false, "Also list the downloadable qualities")
	return cmd
}
