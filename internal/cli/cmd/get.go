package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"snipserve/internal/dirs"
	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/ui"
	"snipserve/internal/util/format"
)

type getOptions struct {
	format  string
	quality string
	outDir  string
	noUI    bool
}

func newGetCmd() *cobra.Command {
	var o getOptions
	cmd := &cobra.Command{
		Use:           "get <url>",
		Short:         "Download one video (mp4) or track (mp3) into a directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := o.request(args[0])
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			if err := dirs.Ensure(o.outDir); err != nil {
				return &ExitError{Code: ExitStorageError, Err: fmt.Errorf("failed to create output dir: %w", err)}
			}
			e, err := newEnv(true)
			if err != nil {
				return err
			}
			defer e.close()

			work := saveTo(e, req, o.outDir)
			var out ui.Outcome
			if !o.noUI && isTerminal() {
				out, err = ui.Run(cmd.Context(), ui.Job{URL: req.URL, Label: o.label(), Work: work})
			} else {
				out, err = work(cmd.Context(), progress.NewTracker())
			}
			if err != nil {
				return exitFor(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (%s)\n", out.Path, format.HumanizeBytes(out.Bytes))
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.format, "format", "f", "mp4", "Output format: mp4 or mp3")
	fs.StringVarP(&o.quality, "quality", "q", model.QualityBest, "Video quality: "+strings.Join(model.Qualities, ", "))
	fs.StringVarP(&o.outDir, "out-dir", "o", ".", "Output directory")
	fs.BoolVar(&o.noUI, "no-ui", false, "Disable the TUI; print plain output")
	return cmd
}

func (o getOptions) request(rawURL string) (model.MediaRequest, error) {
	f := strings.ToLower(o.format)
	if f != "mp4" && f != "mp3" {
		return model.MediaRequest{}, fmt.Errorf("invalid --format: %q (valid: mp4|mp3)", o.format)
	}
	return model.MediaRequest{
		URL:     rawURL,
		Format:  model.ParseFormatType(f),
		Quality: model.NormalizeQuality(o.quality),
		JobID:   progress.NewJobID(),
	}, nil
}

func (o getOptions) label() string {
	if model.ParseFormatType(strings.ToLower(o.format)) == model.FormatAudio {
		return "mp3"
	}
	return "mp4 " + model.NormalizeQuality(o.quality)
}

// saveTo runs req through the pipeline and writes the body under outDir.
// A partial file is removed on failure.
func saveTo(e *env, req model.MediaRequest, outDir string) ui.Work {
	return func(ctx context.Context, tr *progress.Tracker) (ui.Outcome, error) {
		tr.Reset(req.JobID)
		res, err := e.svc.Execute(ctx, req, tr)
		if err != nil {
			return ui.Outcome{}, err
		}
		defer res.Body.Close()

		path := filepath.Join(outDir, res.Filename)
		f, err := os.Create(path)
		if err != nil {
			tr.Fail()
			return ui.Outcome{}, mediaerr.Storage("save", err)
		}
		n, err := io.Copy(f, res.Body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			tr.Fail()
			_ = os.Remove(path)
			if ctx.Err() != nil {
				return ui.Outcome{}, mediaerr.ClientDisconnect("save", ctx.Err())
			}
			if mediaerr.Typed(err) {
				return ui.Outcome{}, err
			}
			return ui.Outcome{}, mediaerr.Storage("save", err)
		}
		return ui.Outcome{Path: path, Bytes: n}, nil
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
