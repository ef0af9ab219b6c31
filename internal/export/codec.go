package export

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSupportedCodec is returned when every candidate codec variant
// failed the probe.
var ErrNoSupportedCodec = errors.New("no supported output codec variant")

// CodecVariant names one container/encoder combination the renderer can
// target.
type CodecVariant struct {
	Label      string `json:"label"`
	Container  string `json:"container"`
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
}

// DefaultCodecVariants is the fallback order: the preferred variant
// first, then progressively more conservative ones.
func DefaultCodecVariants() []CodecVariant {
	return []CodecVariant{
		{Label: "mp4/h264", Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac"},
		{Label: "webm/vp9", Container: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus"},
		{Label: "mkv/mpeg4", Container: "matroska", VideoCodec: "mpeg4", AudioCodec: "aac"},
	}
}

// CodecProber checks whether one variant is encodable on this host.
type CodecProber func(ctx context.Context, variant CodecVariant) error

// SelectCodec walks the variants in order and returns the first one the
// prober accepts. All variants failing is a hard error carrying every
// probe failure.
func SelectCodec(ctx context.Context, probe CodecProber, variants []CodecVariant) (CodecVariant, error) {
	var probeErrs []error
	for _, v := range variants {
		if err := probe(ctx, v); err != nil {
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", v.Label, err))
			continue
		}
		return v, nil
	}
	return CodecVariant{}, fmt.Errorf("%w: %w", ErrNoSupportedCodec, errors.Join(probeErrs...))
}
