package encoder

import "fmt"

// MP3 output parameters.
const (
	MP3BitrateKbps = 192
	MP3SampleRate  = 44100
)

// BuildMP3Args constructs ffmpeg arguments that drop any video stream and
// encode the audio to MP3 at 192 kbit/s, 44.1 kHz, overwriting outputPath.
func BuildMP3Args(inputPath, outputPath string, includeProgress bool) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-i", inputPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", MP3BitrateKbps),
		"-ar", fmt.Sprint(MP3SampleRate),
	}

	if includeProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	args = append(args, outputPath)
	return args
}
