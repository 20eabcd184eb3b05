package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ModalityStat counts manifest entries for one modality.
type ModalityStat struct {
	Modality string `json:"modality"`
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
}

// StatusInfo contains dataset manifest information.
type StatusInfo struct {
	Dataset      string         `json:"dataset"`
	Root         string         `json:"root"`
	ManifestPath string         `json:"manifest_path"`
	ManifestSize int64          `json:"manifest_size"`
	TotalFiles   int            `json:"total_files"`
	TotalBytes   int64          `json:"total_bytes"`
	LastIndexed  time.Time      `json:"last_indexed"`
	Modalities   []ModalityStat `json:"modalities"`
}

// StatusRenderer displays manifest status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Dataset: "+info.Dataset))

	_, _ = fmt.Fprintf(r.out, "  Root:         %s\n", info.Root)
	_, _ = fmt.Fprintf(r.out, "  Files:        %d\n", info.TotalFiles)
	_, _ = fmt.Fprintf(r.out, "  Size:         %s\n", FormatBytes(info.TotalBytes))
	if info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", r.styles.Warning.Render("never"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(r.out)

	if len(info.Modalities) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Modalities:")
		for _, m := range info.Modalities {
			_, _ = fmt.Fprintf(r.out, "    %-6s %6d files  %s\n",
				r.styles.Label.Render(m.Modality), m.Files, FormatBytes(m.Bytes))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintf(r.out, "  Manifest: %s (%s)\n", info.ManifestPath, FormatBytes(info.ManifestSize))
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
