package encoder

import (
	"context"
	"errors"

	"snipserve/internal/mediaerr"
	"snipserve/internal/util"
)

// Options control ffmpeg execution.
type Options struct {
	FFmpegPath string
	Runner     util.CmdRunner
	Trace      func(cmdline string)
	OnTick     func(Tick) // optional; runs on the stdout reader goroutine
}

// Output describes a finished transcode.
type Output struct {
	Path  string
	Bytes int64
}

// TranscodeMP3 converts inputPath into an MP3 at outputPath.
// Cancelling ctx kills ffmpeg. A non-zero exit, or an output that is missing
// or empty, is a conversion error; a partial output is removed on failure.
// The input file is left for the caller to delete.
func TranscodeMP3(ctx context.Context, inputPath, outputPath string, opts Options) (Output, error) {
	if opts.FFmpegPath == "" {
		return Output{}, mediaerr.Conversion("transcode", errors.New("ffmpeg not found"), nil)
	}
	if inputPath == "" || outputPath == "" {
		return Output{}, mediaerr.Conversion("transcode", errors.New("input and output paths are required"), nil)
	}
	runner := opts.Runner
	if runner == nil {
		runner = util.NewDefaultRunner()
	}

	var ps ProgressState
	spec := util.CmdSpec{
		Path:  opts.FFmpegPath,
		Args:  BuildMP3Args(inputPath, outputPath, opts.OnTick != nil),
		Trace: opts.Trace,
	}
	if opts.OnTick != nil {
		spec.StdoutLine = func(line string) {
			if tick, ok := ps.UpdateFromLine(line); ok {
				opts.OnTick(tick)
			}
		}
	}

	res, runErr := runner.Run(ctx, spec)
	if runErr != nil {
		_, _ = util.RemoveIfExists(outputPath)
		if ctx.Err() != nil {
			return Output{}, mediaerr.ClientDisconnect("transcode", ctx.Err())
		}
		return Output{}, mediaerr.Conversion("transcode", runErr, res.Stderr)
	}

	size, err := util.FileSize(outputPath)
	if err != nil {
		return Output{}, mediaerr.Conversion("verify output", err, res.Stderr)
	}
	if size == 0 {
		_, _ = util.RemoveIfExists(outputPath)
		return Output{}, mediaerr.Conversion("verify output", errors.New("ffmpeg produced an empty file"), res.Stderr)
	}
	return Output{Path: outputPath, Bytes: size}, nil
}
