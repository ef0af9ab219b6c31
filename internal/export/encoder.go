package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// AudioInput describes one audible clip the encoder mixes into the
// output track. Times are timeline seconds; Speed is the composed
// clip*track rate.
type AudioInput struct {
	Path      string
	StartTime float64
	TrimStart float64
	Duration  float64
	Volume    float64
	Speed     float64
}

// EncoderOptions configures one encode run.
type EncoderOptions struct {
	Width       int
	Height      int
	FrameRate   int
	Codec       CodecVariant
	AudioInputs []AudioInput
	OutputPath  string
}

// Encoder consumes raw RGBA frames and produces the output file.
type Encoder interface {
	Start(ctx context.Context, opts EncoderOptions) error
	WriteFrame(frame *image.RGBA) error
	// Finish closes the frame stream and waits for the output to be
	// finalized.
	Finish() error
	// Abort kills the encode and discards the partial output.
	Abort()
}

// FFmpegEncoder pipes raw RGBA video into an ffmpeg child process and
// lets ffmpeg trim, delay, rate-adjust and mix the audio inputs from
// their source files.
type FFmpegEncoder struct {
	ffmpegPath string

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    bytes.Buffer
	frameSize int
}

// NewFFmpegEncoder creates an encoder using the given ffmpeg binary.
func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath}
}

// ProbeVariant checks that ffmpeg on this host knows both encoders of
// the variant.
func (e *FFmpegEncoder) ProbeVariant(ctx context.Context, variant CodecVariant) error {
	for _, codec := range []string{variant.VideoCodec, variant.AudioCodec} {
		out, err := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-h", "encoder="+codec).CombinedOutput()
		if err != nil {
			return fmt.Errorf("failed to probe encoder %s: %w", codec, err)
		}
		if strings.Contains(string(out), "Unknown encoder") {
			return fmt.Errorf("encoder %s is not available", codec)
		}
	}
	return nil
}

// Start launches the ffmpeg process. Frames are accepted through
// WriteFrame until Finish.
func (e *FFmpegEncoder) Start(ctx context.Context, opts EncoderOptions) error {
	args := []string{
		"-y", "-hide_banner",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.Itoa(opts.FrameRate),
		"-i", "pipe:0",
	}
	for _, in := range opts.AudioInputs {
		args = append(args, "-i", in.Path)
	}

	args = append(args, "-map", "0:v")
	if len(opts.AudioInputs) > 0 {
		args = append(args, "-filter_complex", audioFilterGraph(opts.AudioInputs))
		args = append(args, "-map", "[aout]", "-c:a", opts.Codec.AudioCodec)
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-c:v", opts.Codec.VideoCodec,
		"-pix_fmt", "yuv420p",
		"-f", opts.Codec.Container,
		opts.OutputPath,
	)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open encoder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg encoder: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.frameSize = opts.Width * opts.Height * 4
	return nil
}

// WriteFrame streams one frame's pixels to the encoder.
func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	if len(frame.Pix) != e.frameSize {
		return fmt.Errorf("frame is %d bytes, encoder expects %d", len(frame.Pix), e.frameSize)
	}
	if _, err := e.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("failed to write frame to encoder: %w", err)
	}
	return nil
}

// Finish closes the frame stream and waits for ffmpeg to finalize the
// container.
func (e *FFmpegEncoder) Finish() error {
	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close encoder stdin: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encoder failed: %w: %s", err, e.stderr.String())
	}
	return nil
}

// Abort kills the encoder process, discarding the partial output.
func (e *FFmpegEncoder) Abort() {
	if e.cmd == nil {
		return
	}
	e.stdin.Close()
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
}

// audioFilterGraph trims each input to its clip span, retimes it by the
// composed speed, applies the composed gain, delays it to its timeline
// start and mixes everything into one [aout] stream. Input 0 is the raw
// video pipe, so audio inputs are 1-based.
func audioFilterGraph(inputs []AudioInput) string {
	var b strings.Builder
	labels := make([]string, 0, len(inputs))

	for i, in := range inputs {
		label := fmt.Sprintf("[a%d]", i+1)
		labels = append(labels, label)

		fmt.Fprintf(&b, "[%d:a]atrim=start=%s:duration=%s,asetpts=PTS-STARTPTS",
			i+1, ffFloat(in.TrimStart), ffFloat(in.Duration*in.Speed))
		for _, tempo := range atempoChain(in.Speed) {
			fmt.Fprintf(&b, ",atempo=%s", ffFloat(tempo))
		}
		fmt.Fprintf(&b, ",volume=%s", ffFloat(in.Volume))
		delayMS := int(in.StartTime * 1000)
		fmt.Fprintf(&b, ",adelay=%d:all=1%s;", delayMS, label)
	}

	if len(inputs) == 1 {
		fmt.Fprintf(&b, "%sanull[aout]", labels[0])
	} else {
		fmt.Fprintf(&b, "%samix=inputs=%d:normalize=0[aout]", strings.Join(labels, ""), len(inputs))
	}
	return b.String()
}

// atempoChain decomposes a playback rate into atempo steps, each inside
// the filter's supported [0.5, 2.0] range. A rate of 1 yields no steps.
func atempoChain(speed float64) []float64 {
	if speed <= 0 || speed == 1 {
		return nil
	}
	var steps []float64
	for speed > 2 {
		steps = append(steps, 2)
		speed /= 2
	}
	for speed < 0.5 {
		steps = append(steps, 0.5)
		speed *= 2
	}
	if speed != 1 {
		steps = append(steps, speed)
	}
	return steps
}

// ffFloat formats a float for an ffmpeg filter argument.
func ffFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
