// Package compositor flattens the visible tracks at one timeline
// position into a single frame. Tracks paint in ascending index order,
// so a clip on a higher track covers whatever lower tracks drew, and
// every source is cover-fitted to the output canvas.
package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

// PlaceholderColor fills frames where no visible clip is active.
var PlaceholderColor = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}

// FrameSource decodes one frame of an asset at a media-local time.
// Image assets ignore the time. The requested size is a decode hint,
// not a contract; the compositor cover-fits whatever comes back.
type FrameSource interface {
	FrameAt(ctx context.Context, asset *timeline.Asset, localTime float64, width, height int) (*image.RGBA, error)
}

// Compositor renders editor state into fixed-size RGBA frames.
type Compositor struct {
	frames  FrameSource
	width   int
	height  int
	lenient bool
}

// New creates a compositor producing width x height frames. A decode
// failure fails the whole frame; the export renderer wants that.
func New(frames FrameSource, width, height int) *Compositor {
	return &Compositor{frames: frames, width: width, height: height}
}

// NewLenient creates a compositor that skips clips whose frames fail to
// decode, leaving whatever lower tracks painted (or the placeholder)
// visible. The interactive preview uses it so one broken source never
// blanks the player.
func NewLenient(frames FrameSource, width, height int) *Compositor {
	return &Compositor{frames: frames, width: width, height: height, lenient: true}
}

// Size returns the output frame dimensions.
func (c *Compositor) Size() (width, height int) {
	return c.width, c.height
}

// RenderFrame flattens all tracks at the given timeline position.
// Hidden tracks and audio clips contribute nothing. A frame with no
// visible clip is the placeholder fill, never an error.
func (c *Compositor) RenderFrame(ctx context.Context, state *timeline.EditorState, pos float64) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(out, out.Bounds(), image.NewUniform(PlaceholderColor), image.Point{}, draw.Src)

	for _, clip := range state.ClipsAtTime(pos) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !state.TrackSettingsFor(clip.TrackIndex).Visible {
			continue
		}
		asset := state.AssetByID(clip.AssetID)
		if asset == nil {
			continue
		}

		var localTime float64
		switch asset.Kind {
		case timeline.AssetKindVideo:
			localTime = clip.LocalTime(pos)
		case timeline.AssetKindImage:
			localTime = 0
		default:
			continue
		}

		frame, err := c.frames.FrameAt(ctx, asset, localTime, c.width, c.height)
		if err != nil {
			if c.lenient {
				continue
			}
			return nil, fmt.Errorf("failed to decode frame for asset %s: %w", asset.ID, err)
		}
		c.paint(out, frame)
	}
	return out, nil
}

// paint cover-fits a source frame onto the canvas.
func (c *Compositor) paint(dst *image.RGBA, src *image.RGBA) {
	b := src.Bounds()
	target := CoverRect(b.Dx(), b.Dy(), c.width, c.height)
	if target.Empty() {
		return
	}
	if target.Eq(dst.Bounds()) && b.Dx() == c.width && b.Dy() == c.height {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, target, src, b, xdraw.Src, nil)
}
