package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/otbridge/internal/config"
	"github.com/san-kum/otbridge/internal/export"
	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/storage"
)

var header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

var (
	plotAxes   []string
	plotHeight int
	plotWidth  int
	exportPath string
	svgPath    string
	svgAxes    bool
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot RUN_ID",
		Short: "plot the axis traces of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().StringSliceVar(&plotAxes, "axis", []string{"x", "y", "z"}, "axes to plot")
	cmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	cmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "export a run and its trace as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	cmd.Flags().StringVarP(&exportPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&svgPath, "svg", "", "also draw the carriage path to this svg file")
	cmd.Flags().BoolVar(&svgAxes, "svg-axes", false, "draw the axes against time instead of the path")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list hardware profiles",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}
}

func openStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Runtime.DataDir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	fmt.Fprintln(out, header.Render(fmt.Sprintf("%d runs", len(runs))))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROTOCOL\tTIME\tBACKEND\tSTEPS\tELAPSED\tSTATUS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2fs\t%s\n",
			run.ID,
			run.Protocol,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Backend,
			run.Steps,
			run.Elapsed,
			run.Status,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if trace.Len() == 0 {
		return fmt.Errorf("run %s has no trace", runID)
	}

	axes := make([]hardware.Axis, 0, len(plotAxes))
	for _, name := range plotAxes {
		ax, err := hardware.ParseAxis(name)
		if err != nil {
			return err
		}
		axes = append(axes, ax)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "protocol: %s\n", meta.Protocol)
	fmt.Fprintf(out, "samples: %d\n\n", trace.Len())

	for _, ax := range axes {
		graph := asciigraph.Plot(trace.Axis(ax),
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(fmt.Sprintf("%s axis (mm)", strings.ToLower(ax.String()))),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}

	if svgPath != "" {
		if err := writeSVG(svgPath, trace); err != nil {
			return err
		}
	}
	if exportPath != "" {
		return storage.ExportFile(exportPath, *meta, trace)
	}
	return storage.ExportJSON(cmd.OutOrStdout(), *meta, trace)
}

func writeSVG(path string, trace *storage.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if svgAxes {
		return export.AxesSVG(f, trace, hardware.Axes(), 960, 400)
	}
	return export.PathSVG(f, trace, hardware.AxisX, hardware.AxisY, 800, 680, "#00ff87")
}

func listPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, header.Render("hardware profiles"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range config.ListPresets() {
		fmt.Fprintf(w, "%s\t%s\n", name, config.Presets[name].Description)
	}
	return w.Flush()
}
