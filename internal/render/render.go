// Package render draws the waveform raster.
//
// [Draw] is a pure function of its inputs: it writes pixels into the target
// image and touches nothing else. Callers take a consistent snapshot of the
// timeline, playhead and marker before drawing.
package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/MrWong99/wavecue/internal/interact"
	"github.com/MrWong99/wavecue/internal/timeline"
	"github.com/MrWong99/wavecue/pkg/audio"
)

// Style is the palette.
type Style struct {
	Background    color.RGBA
	Bars          color.RGBA
	Guides        color.RGBA
	Playhead      color.RGBA
	Marker        color.RGBA
	MinimapBack   color.RGBA
	MinimapWindow color.RGBA
	Label         color.RGBA
}

// DefaultStyle is a dark palette with a gold playhead and a pink marker.
var DefaultStyle = Style{
	Background:    color.RGBA{0x22, 0x22, 0x22, 0xff},
	Bars:          color.RGBA{0xff, 0xff, 0xff, 0xff},
	Guides:        color.RGBA{0x44, 0x44, 0x44, 0xff},
	Playhead:      color.RGBA{0xff, 0xd7, 0x00, 0xff},
	Marker:        color.RGBA{0xff, 0x40, 0x81, 0xff},
	MinimapBack:   color.RGBA{0x33, 0x33, 0x33, 0xff},
	MinimapWindow: color.RGBA{0x88, 0x88, 0x88, 0xff},
	Label:         color.RGBA{0xcc, 0xcc, 0xcc, 0xff},
}

// Options controls layout and scaling.
type Options struct {
	// PeakScaleMin and PeakScaleMax bound the gain applied to bar heights.
	// The gain brings the loudest visible column to 90% of the half-height,
	// so quiet audio is boosted up to PeakScaleMax.
	PeakScaleMin float64
	PeakScaleMax float64

	// MinimapHeight is the height of the overview strip at the bottom.
	MinimapHeight int

	// Labels enables the time labels.
	Labels bool

	Style Style
}

// DefaultOptions matches an 800x80 raster.
var DefaultOptions = Options{
	PeakScaleMin:  0.9,
	PeakScaleMax:  2.0,
	MinimapHeight: 6,
	Labels:        true,
	Style:         DefaultStyle,
}

// Frame is the input of one draw.
type Frame struct {
	Audio    *audio.DecodedAudio
	Timeline timeline.State
	Playhead float64
	Marker   float64
}

// targetFill is the fraction of the half-height the loudest column reaches
// at unit gain.
const targetFill = 0.9

// Draw renders f into dst. dst's bounds define the raster size.
func Draw(dst *image.RGBA, f Frame, opt Options) {
	b := dst.Bounds()
	width, height := b.Dx(), b.Dy()
	fill(dst, b, opt.Style.Background)
	if width == 0 || height == 0 || f.Audio == nil {
		return
	}

	mini := max(0, min(opt.MinimapHeight, height/2))
	wave := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y-mini)
	waveH := float64(wave.Dy())
	mid := float64(wave.Min.Y) + waveH/2

	// Guides at 25%, 50% and 75% of the waveform height.
	for _, frac := range []float64{0.25, 0.5, 0.75} {
		y := wave.Min.Y + int(frac*waveH)
		fill(dst, image.Rect(wave.Min.X, y, wave.Max.X, y+1), opt.Style.Guides)
	}

	peaks := ColumnPeaks(f.Audio, f.Timeline, width)
	gain := Gain(f.Audio.MaxPeak(), opt.PeakScaleMin, opt.PeakScaleMax)
	for col, p := range peaks {
		half := min(1, float64(p)*gain) * waveH / 2
		if half <= 0 {
			continue
		}
		x := wave.Min.X + col
		top := int(mid - half)
		bot := int(mid + half + 0.5)
		fill(dst, image.Rect(x, top, x+1, max(bot, top+1)), opt.Style.Bars)
	}

	fw := float64(width)
	if f.Timeline.Contains(f.Playhead) {
		x := b.Min.X + clampCol(f.Timeline.TimeToPixel(f.Playhead, fw), width)
		fill(dst, image.Rect(x, wave.Min.Y, x+1, wave.Max.Y), opt.Style.Playhead)
	}
	if f.Timeline.Contains(f.Marker) {
		x := b.Min.X + clampCol(f.Timeline.TimeToPixel(f.Marker, fw), width)
		fill(dst, image.Rect(x, wave.Min.Y, x+1, wave.Max.Y), opt.Style.Marker)
		triangle(dst, float32(x)+0.5, float32(wave.Min.Y), opt.Style.Marker)
	}

	if mini > 0 {
		drawMinimap(dst, image.Rect(b.Min.X, wave.Max.Y, b.Max.X, b.Max.Y), f.Timeline, opt.Style)
	}
	if opt.Labels {
		drawLabels(dst, wave, f, opt.Style.Label)
	}
}

// DrawPlaceholder fills dst with the background and a centred message, used
// while audio is loading or after a failure.
func DrawPlaceholder(dst *image.RGBA, msg string, style Style) {
	b := dst.Bounds()
	fill(dst, b, style.Background)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(style.Label), Face: basicfont.Face7x13}
	w := d.MeasureString(msg).Ceil()
	x := b.Min.X + max(0, (b.Dx()-w)/2)
	y := b.Min.Y + (b.Dy()+basicfont.Face7x13.Ascent)/2
	d.Dot = fixed.P(x, y)
	d.DrawString(msg)
}

// ColumnPeaks splits the visible window into width equal time slices and
// returns the peak absolute amplitude of each. Every column covers at least
// one sample so that deep zoom still shows the waveform.
func ColumnPeaks(d *audio.DecodedAudio, s timeline.State, width int) []float32 {
	if width <= 0 || d == nil {
		return nil
	}
	peaks := make([]float32, width)
	vis := s.VisibleDuration()
	if vis <= 0 {
		return peaks
	}
	step := vis / float64(width)
	for col := range peaks {
		t0 := s.OffsetSeconds + float64(col)*step
		from := d.SampleIndex(t0)
		to := max(d.SampleIndex(t0+step), from+1)
		peaks[col] = d.Peak(from, to)
	}
	return peaks
}

// Gain returns the factor that brings peak to 90% of full scale, clamped to
// [lo, hi]. Silence yields lo.
//
// Draw passes the peak of the whole track so bar heights stay put while the
// view pans or zooms.
func Gain(peak float32, lo, hi float64) float64 {
	if peak <= 0 {
		return lo
	}
	return max(lo, min(hi, targetFill/float64(peak)))
}

func drawMinimap(dst *image.RGBA, r image.Rectangle, s timeline.State, style Style) {
	fill(dst, r, style.MinimapBack)
	if s.Duration <= 0 {
		return
	}
	w := float64(r.Dx())
	x0 := r.Min.X + int(s.OffsetSeconds/s.Duration*w)
	x1 := r.Min.X + int(s.VisibleEnd()/s.Duration*w+0.5)
	fill(dst, image.Rect(x0, r.Min.Y, max(x1, x0+1), r.Max.Y), style.MinimapWindow)
}

// drawLabels writes the window bounds in the top corners and the playhead
// time centred at the bottom of the waveform area.
func drawLabels(dst *image.RGBA, wave image.Rectangle, f Frame, col color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	top := wave.Min.Y + face.Ascent + 1
	bottom := wave.Max.Y - face.Descent - 1

	put := func(s string, x, y int) {
		d.Dot = fixed.P(x, y)
		d.DrawString(s)
	}

	put(interact.FormatTime(f.Timeline.OffsetSeconds), wave.Min.X+2, top)

	end := interact.FormatTime(f.Timeline.VisibleEnd())
	put(end, wave.Max.X-d.MeasureString(end).Ceil()-2, top)

	mid := "Play from " + interact.FormatTime(f.Playhead)
	put(mid, wave.Min.X+(wave.Dx()-d.MeasureString(mid).Ceil())/2, bottom)
}

// triangle draws a downward-pointing marker head at (x, y).
func triangle(dst *image.RGBA, x, y float32, col color.RGBA) {
	const half, depth = 5, 8
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	ox, oy := float32(b.Min.X), float32(b.Min.Y)
	z.MoveTo(x-half-ox, y-oy)
	z.LineTo(x+half-ox, y-oy)
	z.LineTo(x-ox, y+depth-oy)
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

func clampCol(px float64, width int) int {
	return max(0, min(width-1, int(px)))
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Scale resizes src by factor using nearest-neighbour sampling, keeping bars
// crisp. A factor of 1 or less returns src unchanged.
func Scale(src *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
