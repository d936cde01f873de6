package decode_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/wavecue/pkg/audio/decode"
)

// writeWAV encodes interleaved 16-bit samples into a WAV file and returns its
// bytes.
func writeWAV(t *testing.T, rate, channels int, samples []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func TestSniff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want decode.Container
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), decode.ContainerWAV},
		{"flac", []byte("fLaC\x00\x00"), decode.ContainerFLAC},
		{"mp3 id3", []byte("ID3\x04\x00"), decode.ContainerMP3},
		{"mp3 sync", []byte{0xFF, 0xFB, 0x90, 0x00}, decode.ContainerMP3},
		{"text", []byte("hello world"), decode.ContainerUnknown},
		{"empty", nil, decode.ContainerUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := decode.Sniff(tc.data); got != tc.want {
				t.Errorf("Sniff = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNative_DecodeWAV(t *testing.T) {
	t.Parallel()
	data := writeWAV(t, 8000, 2, []int{16384, -16384, 0, 32767, -32768, 8192})

	d, err := decode.Native{}.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.SampleRate() != 8000 || d.NumChannels() != 2 || d.SampleCount() != 3 {
		t.Fatalf("got %d Hz, %d ch, %d samples", d.SampleRate(), d.NumChannels(), d.SampleCount())
	}
	if got := d.Channel(0)[0]; got != 0.5 {
		t.Errorf("left[0] = %v, want 0.5", got)
	}
	if got := d.Channel(1)[0]; got != -0.5 {
		t.Errorf("right[0] = %v, want -0.5", got)
	}
	if got := d.Channel(0)[2]; got != -1 {
		t.Errorf("left[2] = %v, want -1", got)
	}
}

func TestNative_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := decode.Native{}.Decode(context.Background(), []byte("definitely not audio"))
	if !errors.Is(err, decode.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNative_Empty(t *testing.T) {
	t.Parallel()
	if _, err := (decode.Native{}).Decode(context.Background(), nil); !errors.Is(err, decode.ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestNative_CancelledContext(t *testing.T) {
	t.Parallel()
	data := writeWAV(t, 8000, 1, []int{1, 2, 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (decode.Native{}).Decode(ctx, data); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFFmpeg_MissingBinary(t *testing.T) {
	t.Parallel()
	f := &decode.FFmpeg{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")}
	if _, err := f.Decode(context.Background(), []byte("RIFF")); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestFFmpeg_DecodeWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	t.Parallel()
	samples := make([]int, 8000)
	data := writeWAV(t, 8000, 1, samples)

	f := &decode.FFmpeg{}
	d, err := f.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.SampleRate() != 44100 || d.NumChannels() != 2 {
		t.Errorf("got %d Hz, %d ch; want 44100 Hz stereo", d.SampleRate(), d.NumChannels())
	}
	if d.Duration() < 0.9 || d.Duration() > 1.1 {
		t.Errorf("duration = %v, want ~1s", d.Duration())
	}
}
