package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/wavecue/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestInt16LEToChannels(t *testing.T) {
	// Two stereo frames: L=16384,R=-16384 and L=0,R=32767, plus a dangling byte.
	pcm := append(samplesToBytes([]int16{16384, -16384, 0, 32767}), 0x01)
	got := audio.Int16LEToChannels(pcm, 2)
	if len(got) != 2 {
		t.Fatalf("channels = %d, want 2", len(got))
	}
	if len(got[0]) != 2 {
		t.Fatalf("frames = %d, want 2", len(got[0]))
	}
	if got[0][0] != 0.5 || got[1][0] != -0.5 {
		t.Errorf("frame 0 = (%v, %v), want (0.5, -0.5)", got[0][0], got[1][0])
	}
	if got[0][1] != 0 {
		t.Errorf("frame 1 left = %v, want 0", got[0][1])
	}
}

func TestIntToChannels_BitDepths(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		sample   int
		want     float32
	}{
		{"8-bit", 8, 64, 0.5},
		{"16-bit", 16, -16384, -0.5},
		{"24-bit", 24, 4194304, 0.5},
		{"32-bit", 32, -1073741824, -0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := audio.IntToChannels([]int{tc.sample}, 1, tc.bitDepth)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got[0][0] != tc.want {
				t.Errorf("got %v, want %v", got[0][0], tc.want)
			}
		})
	}

	if _, err := audio.IntToChannels([]int{1}, 1, 12); err == nil {
		t.Error("expected error for 12-bit input")
	}
}

func TestResample_Halves(t *testing.T) {
	src := [][]float32{{0, 0.25, 0.5, 0.75}}
	got := audio.Resample(src, 48000, 24000)
	if len(got[0]) != 2 {
		t.Fatalf("len = %d, want 2", len(got[0]))
	}
	if got[0][0] != 0 || got[0][1] != 0.5 {
		t.Errorf("got %v, want [0 0.5]", got[0])
	}
}

func TestResample_SameRate(t *testing.T) {
	src := [][]float32{{0.1, 0.2}}
	got := audio.Resample(src, 44100, 44100)
	if &got[0][0] != &src[0][0] {
		t.Error("same-rate resample should return the input unchanged")
	}
}

func TestPlanarRoundTrip(t *testing.T) {
	d, err := audio.NewDecodedAudio(8000, [][]float32{{0, 0.5, -1}, {1, -0.25, 0.125}})
	if err != nil {
		t.Fatalf("NewDecodedAudio: %v", err)
	}
	back, err := audio.DecodePlanar(audio.EncodePlanar(d))
	if err != nil {
		t.Fatalf("DecodePlanar: %v", err)
	}
	if back.SampleRate() != 8000 || back.NumChannels() != 2 || back.SampleCount() != 3 {
		t.Fatalf("header mismatch: rate=%d ch=%d n=%d", back.SampleRate(), back.NumChannels(), back.SampleCount())
	}
	for c := range 2 {
		for i := range 3 {
			if back.Channel(c)[i] != d.Channel(c)[i] {
				t.Errorf("ch %d sample %d: got %v, want %v", c, i, back.Channel(c)[i], d.Channel(c)[i])
			}
		}
	}
}

func TestDecodePlanar_Corrupt(t *testing.T) {
	d, _ := audio.NewDecodedAudio(8000, [][]float32{{0, 0.5}})
	blob := audio.EncodePlanar(d)

	for name, b := range map[string][]byte{
		"short":     blob[:5],
		"truncated": blob[:len(blob)-1],
		"zero-ch":   append([]byte{0x40, 0x1f, 0, 0, 0, 0, 0, 0}, blob[8:]...),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := audio.DecodePlanar(b); !errors.Is(err, audio.ErrInvalidAudio) {
				t.Errorf("err = %v, want ErrInvalidAudio", err)
			}
		})
	}
}

func TestInterleaveFloat32LE(t *testing.T) {
	d, _ := audio.NewDecodedAudio(8000, [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}})
	p := make([]byte, 64)
	n := audio.InterleaveFloat32LE(d, 1, p)
	if n != 2 {
		t.Fatalf("frames = %d, want 2", n)
	}
	want := []float32{0.2, -0.2, 0.3, -0.3}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestFormatString(t *testing.T) {
	if got := (audio.Format{SampleRate: 48000, Channels: 2}).String(); got != "48000Hz stereo" {
		t.Errorf("got %q", got)
	}
	if got := (audio.Format{SampleRate: 8000, Channels: 6}).String(); got != "8000Hz 6ch" {
		t.Errorf("got %q", got)
	}
}
