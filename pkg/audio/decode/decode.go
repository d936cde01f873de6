// Package decode turns encoded audio files into [audio.DecodedAudio].
//
// [Native] decodes WAV, MP3 and FLAC in-process using pure-Go libraries.
// [FFmpeg] shells out to an ffmpeg binary and accepts anything ffmpeg can
// read. Both implement [Decoder] and are usually combined in a failover group
// so that exotic containers still decode when the native path cannot.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/MrWong99/wavecue/pkg/audio"
)

// ErrUnsupportedFormat is returned when the input is not a container the
// decoder understands.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// ErrEmpty is returned when the input holds no bytes.
var ErrEmpty = errors.New("decode: empty input")

// Decoder decodes a complete encoded file held in memory.
//
// Implementations must be safe for concurrent use.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*audio.DecodedAudio, error)
}

// Container identifies an encoded file format.
type Container int

const (
	// ContainerUnknown is returned by [Sniff] for unrecognised input.
	ContainerUnknown Container = iota
	ContainerWAV
	ContainerMP3
	ContainerFLAC
)

// String returns the lower-case container name.
func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerMP3:
		return "mp3"
	case ContainerFLAC:
		return "flac"
	default:
		return "unknown"
	}
}

// Sniff inspects the leading bytes of data and reports the container.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return ContainerFLAC
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	default:
		return ContainerUnknown
	}
}

// Native decodes WAV, MP3 and FLAC without external processes.
type Native struct{}

var _ Decoder = Native{}

// Decode implements [Decoder].
func (Native) Decode(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	switch Sniff(data) {
	case ContainerWAV:
		return decodeWAV(data)
	case ContainerMP3:
		return decodeMP3(ctx, data)
	case ContainerFLAC:
		return decodeFLAC(ctx, data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT tag.
const wavFormatFloat = 3

func decodeWAV(data []byte) (*audio.DecodedAudio, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("decode: wav: invalid file")
	}
	if d.WavAudioFormat == wavFormatFloat {
		return nil, fmt.Errorf("%w: wav: float samples", ErrUnsupportedFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode: wav: read pcm: %w", err)
	}
	bitDepth := int(d.BitDepth)
	if bitDepth == 8 {
		recentreUnsigned8(buf)
	}
	channels, err := audio.IntToChannels(buf.Data, int(d.NumChans), bitDepth)
	if err != nil {
		return nil, fmt.Errorf("decode: wav: %w", err)
	}
	return audio.NewDecodedAudio(int(d.SampleRate), channels)
}

// recentreUnsigned8 converts unsigned 8-bit samples to signed.
func recentreUnsigned8(buf *goaudio.IntBuffer) {
	for i, s := range buf.Data {
		buf.Data[i] = s - 128
	}
}

// mp3Channels is fixed: go-mp3 always emits 16-bit stereo.
const mp3Channels = 2

func decodeMP3(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: mp3: %w", err)
	}
	pcm, err := io.ReadAll(ctxReader{ctx: ctx, r: dec})
	if err != nil {
		return nil, fmt.Errorf("decode: mp3: read pcm: %w", err)
	}
	return audio.NewDecodedAudio(dec.SampleRate(), audio.Int16LEToChannels(pcm, mp3Channels))
}

// maxPrealloc bounds the per-channel capacity taken from a FLAC header.
const maxPrealloc = 1 << 24

func decodeFLAC(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: flac: %w", err)
	}
	defer stream.Close()

	nch := int(stream.Info.NChannels)
	planes := make([][]int32, nch)
	capacity := int(min(stream.Info.NSamples, maxPrealloc))
	for c := range planes {
		planes[c] = make([]int32, 0, capacity)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode: flac: parse frame: %w", err)
		}
		for c, sub := range frame.Subframes {
			if c < nch {
				planes[c] = append(planes[c], sub.Samples...)
			}
		}
	}
	channels, err := audio.Int32PlanarToChannels(planes, int(stream.Info.BitsPerSample))
	if err != nil {
		return nil, fmt.Errorf("%w: flac: %v", ErrUnsupportedFormat, err)
	}
	return audio.NewDecodedAudio(int(stream.Info.SampleRate), channels)
}

// ctxReader aborts a long read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
