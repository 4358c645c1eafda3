package stream

import (
	"fmt"
	"strings"
)

// SourceType is the category of input feeding a relay. It decides
// which ffmpeg argument template is used for the stream.
type SourceType string

const (
	SourceFile SourceType = "file"
	SourceRTSP SourceType = "rtsp"
	SourceRTMP SourceType = "rtmp"
	SourceHLS  SourceType = "hls"
	SourceUDP  SourceType = "udp"
)

var sourceTypes = map[SourceType]struct{}{
	SourceFile: {},
	SourceRTSP: {},
	SourceRTMP: {},
	SourceHLS:  {},
	SourceUDP:  {},
}

// ParseSourceType parses a source type string, case-insensitively.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))

	if _, ok := sourceTypes[t]; !ok {
		return "", fmt.Errorf("unknown source type %q", s)
	}

	return t, nil
}

// Declaration describes a single relay: where the media comes from and
// where it is published on the RTSP server. Declarations are loaded once
// at startup and are immutable afterwards.
type Declaration struct {
	// Name uniquely identifies the stream across the declaration set.
	Name string `conf:"name"`

	// Type is the source type of the stream.
	Type SourceType `conf:"type"`

	// Input is the source locator: a file path or a URL,
	// depending on Type.
	Input string `conf:"input"`

	// OutputPath is the path the stream is published under,
	// relative to the RTSP server base URL.
	OutputPath string `conf:"output_path"`

	// Options are additional ffmpeg flags, applied verbatim as
	// `-key value` pairs after the type-specific template.
	Options map[string]any `conf:"options"`
}

// Validate checks the per-stream invariants. A failing declaration is
// skipped by the caller, it never aborts loading of its siblings.
func (d Declaration) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("stream name must not be empty")
	}

	if d.Input == "" {
		return fmt.Errorf("stream %s: input must not be empty", d.Name)
	}

	if d.OutputPath == "" {
		return fmt.Errorf("stream %s: output_path must not be empty", d.Name)
	}

	if _, ok := sourceTypes[d.Type]; !ok {
		return fmt.Errorf("stream %s: unknown source type %q", d.Name, d.Type)
	}

	return nil
}
