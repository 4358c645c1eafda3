package stream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamfleet/relayd/internal/stream"
)

const serverBase = "rtsp://mediamtx:8554"

func TestCommand_File(t *testing.T) {
	args, err := stream.Command(stream.Declaration{
		Name:       "cam1",
		Type:       stream.SourceFile,
		Input:      "/media/loop.mp4",
		OutputPath: "cam1/stream",
	}, serverBase)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"-re",
		"-stream_loop", "-1",
		"-i", "/media/loop.mp4",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:v", "2M",
		"-bufsize", "4M",
		"-maxrate", "2.5M",
		"-g", "50",
		"-keyint_min", "25",
		"-f", "rtsp",
		"rtsp://mediamtx:8554/cam1/stream",
	}, args)
}

func TestCommand_RTSP_CopiesOverTCP(t *testing.T) {
	args, err := stream.Command(stream.Declaration{
		Name:       "gate",
		Type:       stream.SourceRTSP,
		Input:      "rtsp://10.0.0.2/live",
		OutputPath: "gate",
	}, serverBase)
	assert.NoError(t, err)

	assert.Contains(t, strings.Join(args, " "), "-rtsp_transport tcp -i rtsp://10.0.0.2/live -c copy")
	assert.Equal(t, "rtsp://mediamtx:8554/gate", args[len(args)-1])
	assert.Equal(t, "rtsp", args[len(args)-2])
	assert.Equal(t, "-f", args[len(args)-3])
}

func TestCommand_RTMP_Copies(t *testing.T) {
	args, err := stream.Command(stream.Declaration{
		Name:       "event",
		Type:       stream.SourceRTMP,
		Input:      "rtmp://ingest/live",
		OutputPath: "event",
	}, serverBase)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"-re",
		"-i", "rtmp://ingest/live",
		"-c", "copy",
		"-f", "rtsp",
		"rtsp://mediamtx:8554/event",
	}, args)
}

func TestCommand_UnsupportedTypes(t *testing.T) {
	for _, sourceType := range []stream.SourceType{stream.SourceHLS, stream.SourceUDP} {
		_, err := stream.Command(stream.Declaration{
			Name:       "x",
			Type:       sourceType,
			Input:      "in",
			OutputPath: "out",
		}, serverBase)
		assert.ErrorIs(t, err, stream.ErrUnsupportedSourceType)
	}
}

func TestCommand_OptionsBetweenTemplateAndSink(t *testing.T) {
	args, err := stream.Command(stream.Declaration{
		Name:       "event",
		Type:       stream.SourceRTMP,
		Input:      "rtmp://ingest/live",
		OutputPath: "event",
		Options: map[string]any{
			"timeout": 5000000,
			"analyzeduration": "10M",
		},
	}, serverBase)
	assert.NoError(t, err)

	// keys sorted, after the template, before the output sink
	assert.Equal(t, []string{
		"-re",
		"-i", "rtmp://ingest/live",
		"-c", "copy",
		"-analyzeduration", "10M",
		"-timeout", "5000000",
		"-f", "rtsp",
		"rtsp://mediamtx:8554/event",
	}, args)
}

func TestCommand_Deterministic(t *testing.T) {
	decl := stream.Declaration{
		Name:       "cam",
		Type:       stream.SourceRTSP,
		Input:      "rtsp://cam/live",
		OutputPath: "cam",
		Options: map[string]any{
			"b": 2, "a": 1, "c": 3,
		},
	}

	first, err := stream.Command(decl, serverBase)
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := stream.Command(decl, serverBase)
		assert.NoError(t, err)
		assert.Equal(t, first, next)
	}
}
