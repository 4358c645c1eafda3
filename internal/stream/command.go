package stream

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedSourceType is returned by Command for source types that
// are declared in the enum but have no ffmpeg argument template. This is
// deliberate for hls and udp: they fail explicitly instead of guessing.
var ErrUnsupportedSourceType = errors.New("unsupported source type")

// Command builds the ordered ffmpeg argument list that relays the
// declared source to `<serverBase>/<outputPath>` on the RTSP server.
// The binary name itself is not part of the returned slice.
//
// File sources are time-paced and looped indefinitely to emulate a
// continuous live feed, and transcoded to a constrained-bitrate h264/aac
// profile. Network sources are relayed without re-encoding.
func Command(d Declaration, serverBase string) ([]string, error) {
	args := []string{"-re"}

	switch d.Type {
	case SourceFile:
		args = append(args,
			"-stream_loop", "-1",
			"-i", d.Input,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-c:a", "aac",
			"-b:v", "2M",
			"-bufsize", "4M",
			"-maxrate", "2.5M",
			"-g", "50",
			"-keyint_min", "25",
		)
	case SourceRTSP:
		args = append(args,
			"-rtsp_transport", "tcp",
			"-i", d.Input,
			"-c", "copy",
			"-f", "rtsp",
			"-rtsp_transport", "tcp",
		)
	case SourceRTMP:
		args = append(args,
			"-i", d.Input,
			"-c", "copy",
		)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, d.Type)
	}

	// per-stream overrides, after the template and before the sink.
	// keys are sorted so the built command is deterministic.
	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, "-"+k, fmt.Sprintf("%v", d.Options[k]))
	}

	// the output sink is always last: rtsp muxer, then the publish URL
	args = append(args, "-f", "rtsp", fmt.Sprintf("%s/%s", serverBase, d.OutputPath))

	return args, nil
}
