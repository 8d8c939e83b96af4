package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// Advanced SubStation Alpha format
type ASSWriter struct {
	Title    string
	FontName string
	FontSize int
	// emit \k karaoke tags so players sweep each word as it is spoken
	Karaoke bool
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{
			Title:    "wordsync captions",
			FontName: "Arial",
			FontSize: 20,
			Karaoke:  true,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// hh:mm:ss<sep>mmm
func clock(d time.Duration, sep string) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d%s%03d",
		ms/3_600_000, ms/60_000%60, ms/1000%60, sep, ms%1000)
}

// h:mm:ss.cc
func assClock(d time.Duration) string {
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d",
		cs/360_000, cs/6000%60, cs/100%60, cs%100)
}

func (w *SRTWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder
	for i, e := range sub.Entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1, clock(e.StartTime, ","), clock(e.EndTime, ","), e.Text)
	}
	return writeFile(path, sb.String())
}

func (w *VTTWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for i, e := range sub.Entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1, clock(e.StartTime, "."), clock(e.EndTime, "."), e.Text)
	}
	return writeFile(path, sb.String())
}

func (w *ASSWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	fmt.Fprintf(&sb, "Title: %s\n", w.Title)
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("Collisions: Normal\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,&H0000FFFF,&H00FFFFFF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		w.FontName, w.FontSize)

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, e := range sub.Entries {
		text := strings.ReplaceAll(e.Text, "\n", `\N`)
		if w.Karaoke && len(e.Words) > 0 {
			text = karaokeText(e)
		}
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assClock(e.StartTime), assClock(e.EndTime), text)
	}

	return writeFile(path, sb.String())
}

// karaokeText tags every word with its length in centiseconds; the gap
// before a word is folded into the preceding tag so the sweep stays in step.
func karaokeText(e Entry) string {
	var sb strings.Builder
	for i, w := range e.Words {
		end := w.End
		if i+1 < len(e.Words) {
			end = e.Words[i+1].Start
		}
		cs := int((end-w.Start)*100 + 0.5)
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, `{\k%d}%s`, cs, w.Word)
	}
	return sb.String()
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// subtitle format based on file extension, SRT when unknown
func FormatFromExtension(path string) Format {
	if f, ok := ParseFormat(extension(path)); ok {
		return f
	}
	return FormatSRT
}

// file extension for a format
func ExtensionForFormat(format Format) string {
	switch format {
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}
