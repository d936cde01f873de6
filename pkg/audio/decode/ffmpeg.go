package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MrWong99/wavecue/pkg/audio"
)

// FFmpeg decodes any input ffmpeg understands by piping it through the
// binary and reading raw float32 PCM back.
type FFmpeg struct {
	// Path is the ffmpeg executable. Defaults to "ffmpeg" on $PATH.
	Path string

	// Format is the output format ffmpeg resamples to. Zero values default
	// to 44100 Hz stereo.
	Format audio.Format
}

var _ Decoder = (*FFmpeg)(nil)

// Decode implements [Decoder].
func (f *FFmpeg) Decode(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}
	rate, nch := f.Format.SampleRate, f.Format.Channels
	if rate <= 0 {
		rate = 44100
	}
	if nch <= 0 {
		nch = 2
	}

	cmd := exec.CommandContext(ctx, path,
		"-i", "pipe:0",
		"-f", "f32le",
		"-ac", strconv.Itoa(nch),
		"-ar", strconv.Itoa(rate),
		"-loglevel", "error",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("decode: ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return audio.NewDecodedAudio(rate, float32LEToChannels(stdout.Bytes(), nch))
}

// float32LEToChannels deinterleaves raw f32le PCM. A trailing partial frame
// is dropped.
func float32LEToChannels(pcm []byte, channels int) [][]float32 {
	frameBytes := 4 * channels
	frames := len(pcm) / frameBytes
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			bits := binary.LittleEndian.Uint32(pcm[i*frameBytes+c*4:])
			out[c][i] = math.Float32frombits(bits)
		}
	}
	return out
}
