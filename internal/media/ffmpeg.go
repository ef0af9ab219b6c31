package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg wraps the ffmpeg/ffprobe binaries used for probing sources and
// decoding individual frames.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// SourceInfo holds the probed properties of a media source.
type SourceInfo struct {
	Duration  float64
	Width     int
	Height    int
	HasVideo  bool
	HasAudio  bool
	Codec     string
	FrameRate float64
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Probe extracts duration and stream layout from a media file.
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*SourceInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &SourceInfo{}
	if duration, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = duration
	}
	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			if stream.AvgFrameRate != "" {
				parts := strings.Split(stream.AvgFrameRate, "/")
				if len(parts) == 2 {
					num, _ := strconv.ParseFloat(parts[0], 64)
					den, _ := strconv.ParseFloat(parts[1], 64)
					if den != 0 {
						info.FrameRate = num / den
					}
				}
			}
		case "audio":
			info.HasAudio = true
		}
	}

	return info, nil
}

// FrameAt decodes a single RGBA frame at the given media-local time,
// scaled to width x height. Image sources ignore the time.
func (f *FFmpeg) FrameAt(ctx context.Context, inputPath string, t float64, width, height int) (*image.RGBA, error) {
	args := []string{
		"-ss", fmt.Sprintf("%.4f", t),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame decode failed: %w, stderr: %s", err, stderr.String())
	}

	want := width * height * 4
	if stdout.Len() < want {
		return nil, fmt.Errorf("short frame read: got %d bytes, want %d", stdout.Len(), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, stdout.Bytes()[:want])
	return img, nil
}

// ExtractThumbnail writes a single JPEG frame at the given time.
func (f *FFmpeg) ExtractThumbnail(ctx context.Context, inputPath, outputPath string, timeSeconds float64) error {
	args := []string{
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.2f", timeSeconds),
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to extract thumbnail: %w, stderr: %s", err, stderr.String())
	}

	return nil
}
