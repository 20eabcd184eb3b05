package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/output"
	"github.com/synapsense/synapsense/internal/ui"
)

type readSummary struct {
	Path     string      `json:"path"`
	Modality string      `json:"modality"`
	Size     string      `json:"size"`
	Rows     int         `json:"rows"`
	Cols     int         `json:"cols"`
	Columns  []string    `json:"columns,omitempty"`
	Head     [][]float64 `json:"head,omitempty"`
}

func newReadCmd(a *app) *cobra.Command {
	var (
		forced     string
		head       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read a sensor file and summarise its contents",
		Long: `Read a sensor file into the unified data bundle and print its shape.

The modality is resolved from the file extension in the order
dvs, lidar, imu, rgb. Use --modality for extensions shared by several
modalities, such as .csv.`,
		Example: `  # Summarise a point cloud
  synapsense read scan.pcd

  # Read a CSV as IMU data and show the first 10 rows
  synapsense read --modality imu --head 10 walk.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, a, args[0], forced, head, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&forced, "modality", "m", "", "Force a modality: dvs, lidar, imu, rgb")
	cmd.Flags().IntVarP(&head, "head", "n", 5, "Number of rows to print")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRead(cmd *cobra.Command, a *app, path, forced string, head int, jsonOutput bool) error {
	b, err := a.readBundle(cmd, path, forced)
	if err != nil {
		return err
	}

	size, err := modality.FileSize(path)
	if err != nil {
		return err
	}
	rows, cols := b.Shape()
	summary := readSummary{
		Path:     path,
		Modality: string(b.Modality),
		Size:     size,
		Rows:     rows,
		Cols:     cols,
		Columns:  b.Columns,
	}
	if b.Data != nil && head > 0 {
		summary.Head = b.Data[:min(head, len(b.Data))]
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	out := a.output(cmd)
	out.Header(path)
	out.KeyValue("Modality", strings.ToUpper(summary.Modality))
	out.KeyValue("Size", summary.Size)
	if b.Image != nil && b.Data == nil {
		out.KeyValue("Image", fmt.Sprintf("%dx%d", cols, rows))
	} else {
		out.KeyValue("Shape", fmt.Sprintf("%d x %d", rows, cols))
	}
	if len(summary.Columns) > 0 {
		out.KeyValue("Columns", strings.Join(summary.Columns, ", "))
	}
	if len(summary.Head) > 0 {
		out.Newline()
		lines := make([]string, len(summary.Head))
		for i, row := range summary.Head {
			lines[i] = formatRow(row)
		}
		out.Code(strings.Join(lines, "\n"))
	}
	return nil
}

// readBundle reads path through the cache, honouring a forced modality.
func (a *app) readBundle(cmd *cobra.Command, path, forced string) (*modality.Bundle, error) {
	if forced == "" {
		return a.io.Read(cmd.Context(), path)
	}
	m, err := modality.Parse(forced)
	if err != nil {
		return nil, err
	}
	return a.io.ReadWithModality(cmd.Context(), m, path)
}

func (a *app) output(cmd *cobra.Command) *output.Writer {
	if a.flags.noColor {
		return output.NewWithStyles(cmd.OutOrStdout(), ui.NoColorStyles())
	}
	return output.New(cmd.OutOrStdout())
}

func formatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, "\t")
}
