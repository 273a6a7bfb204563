package storage

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/san-kum/otbridge/internal/hardware"
)

type ExportData struct {
	Run       RunMetadata          `json:"run"`
	Samples   int                  `json:"samples"`
	Times     []float64            `json:"times"`
	Positions map[string][]float64 `json:"positions"`
}

func newExportData(meta RunMetadata, trace *Trace) ExportData {
	data := ExportData{
		Run:       meta,
		Samples:   trace.Len(),
		Times:     trace.Times(),
		Positions: make(map[string][]float64, hardware.NumAxes),
	}
	for _, ax := range hardware.Axes() {
		data.Positions[strings.ToLower(ax.String())] = trace.Axis(ax)
	}
	return data
}

// ExportJSON writes a run and its trace as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, trace *Trace) error {
	if trace == nil {
		trace = &Trace{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(meta, trace))
}

// ExportFile is ExportJSON to a file at path.
func ExportFile(path string, meta RunMetadata, trace *Trace) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, meta, trace)
}
