package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamfleet/relayd/internal/stream"
)

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		in   string
		want stream.SourceType
	}{
		{"file", stream.SourceFile},
		{"FILE", stream.SourceFile},
		{"rtsp", stream.SourceRTSP},
		{"Rtmp", stream.SourceRTMP},
		{"hls", stream.SourceHLS},
		{"udp", stream.SourceUDP},
		{" rtsp ", stream.SourceRTSP},
	}

	for _, tt := range tests {
		got, err := stream.ParseSourceType(tt.in)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseSourceType_Unknown(t *testing.T) {
	_, err := stream.ParseSourceType("webrtc")
	assert.Error(t, err)
}

func TestDeclaration_Validate(t *testing.T) {
	valid := stream.Declaration{
		Name:       "cam1",
		Type:       stream.SourceRTSP,
		Input:      "rtsp://cam/live",
		OutputPath: "cam1",
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	noInput := valid
	noInput.Input = ""
	assert.Error(t, noInput.Validate())

	noOutput := valid
	noOutput.OutputPath = ""
	assert.Error(t, noOutput.Validate())

	badType := valid
	badType.Type = "webrtc"
	assert.Error(t, badType.Validate())
}
