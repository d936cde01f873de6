package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable description such as "48000Hz stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Int16LEToChannels splits interleaved little-endian int16 PCM into
// normalised per-channel float slices. A trailing partial frame is dropped.
func Int16LEToChannels(pcm []byte, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		base := i * frameBytes
		for c := range channels {
			s := int16(binary.LittleEndian.Uint16(pcm[base+c*2:]))
			out[c][i] = float32(s) / 32768
		}
	}
	return out
}

// IntToChannels splits interleaved integer PCM of the given bit depth into
// normalised per-channel float slices. A trailing partial frame is dropped.
func IntToChannels(data []int, channels, bitDepth int) ([][]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	divisor, err := bitDepthDivisor(bitDepth)
	if err != nil {
		return nil, err
	}
	frames := len(data) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = float32(float64(data[i*channels+c]) / divisor)
		}
	}
	return out, nil
}

// Int32PlanarToChannels normalises planar int32 samples of the given bit
// depth, as produced by FLAC subframes.
func Int32PlanarToChannels(planes [][]int32, bitDepth int) ([][]float32, error) {
	divisor, err := bitDepthDivisor(bitDepth)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(planes))
	for c, plane := range planes {
		ch := make([]float32, len(plane))
		for i, s := range plane {
			ch[i] = float32(float64(s) / divisor)
		}
		out[c] = ch
	}
	return out, nil
}

// bitDepthDivisor returns the full-scale value for signed PCM of bitDepth.
// 8-bit WAV is unsigned; callers that read raw 8-bit data must recentre it
// before calling.
func bitDepthDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128, nil
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, fmt.Errorf("audio: unsupported bit depth %d", bitDepth)
	}
}

// Resample converts every channel from srcRate to dstRate using linear
// interpolation. If the rates match the input is returned unchanged.
func Resample(channels [][]float32, srcRate, dstRate int) [][]float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return channels
	}
	out := make([][]float32, len(channels))
	ratio := float64(srcRate) / float64(dstRate)
	for c, src := range channels {
		if len(src) == 0 {
			out[c] = nil
			continue
		}
		dstLen := int(int64(len(src)) * int64(dstRate) / int64(srcRate))
		dst := make([]float32, dstLen)
		for i := range dstLen {
			pos := float64(i) * ratio
			idx := int(pos)
			frac := float32(pos - float64(idx))
			s0 := src[idx]
			s1 := s0
			if idx+1 < len(src) {
				s1 = src[idx+1]
			}
			dst[i] = s0*(1-frac) + s1*frac
		}
		out[c] = dst
	}
	return out
}

// EncodePlanar serialises d into a compact planar little-endian float32 blob:
//
//	uint32 sampleRate | uint32 channels | uint32 samplesPerChannel | float32...
//
// The format is what cache backends persist for [DecodedAudio].
func EncodePlanar(d *DecodedAudio) []byte {
	n := d.SampleCount()
	buf := make([]byte, 12+4*n*d.NumChannels())
	binary.LittleEndian.PutUint32(buf[0:], uint32(d.SampleRate()))
	binary.LittleEndian.PutUint32(buf[4:], uint32(d.NumChannels()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(n))
	off := 12
	for _, ch := range d.Channels() {
		for _, s := range ch {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(s))
			off += 4
		}
	}
	return buf
}

// DecodePlanar is the inverse of [EncodePlanar]. It returns an error wrapping
// [ErrInvalidAudio] when the blob is truncated or its header is inconsistent.
func DecodePlanar(blob []byte) (*DecodedAudio, error) {
	if len(blob) < 12 {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrInvalidAudio, len(blob))
	}
	rate := int(binary.LittleEndian.Uint32(blob[0:]))
	nch := int(binary.LittleEndian.Uint32(blob[4:]))
	n := int(binary.LittleEndian.Uint32(blob[8:]))
	if nch <= 0 || nch > 64 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidAudio, nch)
	}
	if want := 12 + 4*n*nch; len(blob) != want {
		return nil, fmt.Errorf("%w: blob is %d bytes, header says %d", ErrInvalidAudio, len(blob), want)
	}
	channels := make([][]float32, nch)
	off := 12
	for c := range channels {
		ch := make([]float32, n)
		for i := range ch {
			ch[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
			off += 4
		}
		channels[c] = ch
	}
	return NewDecodedAudio(rate, channels)
}

// InterleaveFloat32LE writes the samples of d starting at frame offset as
// interleaved little-endian float32 into p and returns the number of whole
// frames written. It is used by playback backends that stream PCM.
func InterleaveFloat32LE(d *DecodedAudio, offset int, p []byte) int {
	nch := d.NumChannels()
	frameBytes := 4 * nch
	frames := min(len(p)/frameBytes, max(0, d.SampleCount()-offset))
	for i := range frames {
		for c := range nch {
			s := d.Channel(c)[offset+i]
			binary.LittleEndian.PutUint32(p[i*frameBytes+c*4:], math.Float32bits(s))
		}
	}
	return frames
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
