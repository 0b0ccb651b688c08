package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"story-video-worker/constant"
)

// MediaComposer shells out to ffmpeg to render per-scene sub-clips and to
// concatenate them into the final artifact.
type MediaComposer interface {
	ComposeSegment(ctx context.Context, imagePath, audioPath string, frame constant.Dimensions, outputPath string) error
	Concatenate(ctx context.Context, segmentPaths []string, outputPath string) error
}

type ffmpegComposer struct{}

func NewFFmpegComposer() MediaComposer {
	return &ffmpegComposer{}
}

// ComposeSegment loops a still image under the narration audio. -shortest
// bounds the clip by the shorter of the two inputs; the scale/crop filter
// fills the target frame regardless of the source aspect ratio.
func (f *ffmpegComposer) ComposeSegment(ctx context.Context, imagePath, audioPath string, frame constant.Dimensions, outputPath string) error {
	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-vf", fmt.Sprintf("scale=%dx%d:force_original_aspect_ratio=increase,crop=%d:%d",
			frame.Width, frame.Height, frame.Width, frame.Height),
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg segment render failed: %w\noutput: %s", err, string(output))
	}

	return nil
}

// Concatenate joins the sub-clips via the concat demuxer with stream copy.
// The caller is responsible for passing the paths in scene order.
func (f *ffmpegComposer) Concatenate(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return ErrNoPlayableSegments
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	content, err := BuildConcatList(segmentPaths)
	if err != nil {
		return err
	}
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concatenation failed: %w\noutput: %s", err, string(output))
	}

	return nil
}

// BuildConcatList renders the concat demuxer file list, with absolute paths
// and single quotes escaped the way the demuxer expects.
func BuildConcatList(segmentPaths []string) (string, error) {
	var builder strings.Builder
	for _, path := range segmentPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		escaped := strings.ReplaceAll(absPath, "'", "'\\''")
		builder.WriteString(fmt.Sprintf("file '%s'\n", escaped))
	}
	return builder.String(), nil
}

// ArtifactPath is where a job's final video lives, outside the per-job
// scratch directory so it survives scratch cleanup.
func ArtifactPath(workDir, jobId string) string {
	return filepath.Join(workDir, "videos", jobId+".mp4")
}
