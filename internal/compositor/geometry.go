package compositor

import "image"

// CoverRect places a source of srcW x srcH onto a dst x dstH canvas
// using cover fit: the source is scaled uniformly until it fills the
// canvas on both axes and centered, so the overflow on the longer axis
// is cropped rather than letterboxed. The returned rectangle may extend
// beyond the canvas bounds; drawing clips it.
func CoverRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}

	// Pick the scale that covers both axes.
	scaleX := float64(dstW) / float64(srcW)
	scaleY := float64(dstH) / float64(srcH)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// RenderSize maps an aspect ratio label to output pixel dimensions.
// Unknown labels fall back to 16:9.
func RenderSize(aspectRatio string) (width, height int) {
	switch aspectRatio {
	case "9:16":
		return 1080, 1920
	case "1:1":
		return 1080, 1080
	case "4:3":
		return 1440, 1080
	default:
		return 1920, 1080
	}
}
