package transcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Params describes one two-image render.
type Params struct {
	Image1   string
	Image2   string
	Output   string
	Duration int // seconds
	Text     string
	FontFile string
}

// CommandBuilder renders ffmpeg argument lists for the pan/concat/overlay pipeline.
type CommandBuilder struct {
	Width    int
	Height   int
	FPS      int
	FontSize int
	Zoom     float64 // headroom for the horizontal pan
}

func NewCommandBuilder(width, height, fps int) *CommandBuilder {
	return &CommandBuilder{
		Width:    width,
		Height:   height,
		FPS:      fps,
		FontSize: height / 30,
		Zoom:     1.2,
	}
}

// Frames splits the total frame count between the two images.
func (b *CommandBuilder) Frames(duration int) (first, second int) {
	total := duration * b.FPS
	first = total / 2
	return first, total - first
}

// Args returns the ffmpeg arguments (without the binary).
func (b *CommandBuilder) Args(p Params) []string {
	args := []string{
		"-y", "-hide_banner", "-nostats", "-loglevel", "error",
		"-progress", "pipe:1",
		"-i", p.Image1,
		"-i", p.Image2,
		"-filter_complex", b.FilterGraph(p),
		"-map", "[out]",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(b.FPS),
		"-t", strconv.Itoa(p.Duration),
		"-movflags", "+faststart",
		p.Output,
	}
	return args
}

// FilterGraph builds the -filter_complex graph: each image is cropped to the
// output frame and panned left to right, the clips are concatenated and the
// overlay text is burned in near the bottom.
func (b *CommandBuilder) FilterGraph(p Params) string {
	f1, f2 := b.Frames(p.Duration)

	var sb strings.Builder
	sb.WriteString(b.panClip(0, f1))
	sb.WriteString(";")
	sb.WriteString(b.panClip(1, f2))
	sb.WriteString(";[v0][v1]concat=n=2:v=1:a=0")
	if p.Text != "" {
		sb.WriteString(",")
		sb.WriteString(b.drawText(p.Text, p.FontFile))
	}
	sb.WriteString(",format=yuv420p[out]")
	return sb.String()
}

func (b *CommandBuilder) panClip(input, frames int) string {
	span := frames - 1
	if span < 1 {
		span = 1
	}
	return fmt.Sprintf(
		"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,"+
			"zoompan=z=%.2f:x=(iw-iw/zoom)*on/%d:y=(ih-ih/zoom)/2:d=%d:s=%dx%d:fps=%d[v%d]",
		input, b.Width, b.Height, b.Width, b.Height,
		b.Zoom, span, frames, b.Width, b.Height, b.FPS, input,
	)
}

func (b *CommandBuilder) drawText(text, fontFile string) string {
	opts := []string{
		"text=" + escapeFilterValue(text),
		"expansion=none",
	}
	if fontFile != "" {
		opts = append(opts, "fontfile="+escapeFilterValue(fontFile))
	}
	opts = append(opts,
		"fontsize="+strconv.Itoa(b.FontSize),
		"fontcolor=white",
		"box=1",
		"boxcolor=black@0.5",
		"boxborderw=20",
		"x=(w-text_w)/2",
		"y=h-text_h-"+strconv.Itoa(b.Height/8),
	)
	return "drawtext=" + strings.Join(opts, ":")
}

// escapeFilterValue escapes an option value for both filtergraph levels:
// the option parser first, then the graph parser.
func escapeFilterValue(s string) string {
	return escapeChars(escapeChars(s, `\':`), `\'[],;`)
}

func escapeChars(s, special string) string {
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
