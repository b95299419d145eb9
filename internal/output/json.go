package output

import (
	"encoding/json"
	"io"

	"github.com/buemura/surface/pkg/types"
)

// JSONFormatter renders a run, with its summary, as indented JSON.
type JSONFormatter struct{}

type jsonReport struct {
	types.ScanRun
	Summary types.RunSummary `json:"summary"`
}

func (f *JSONFormatter) Format(w io.Writer, run types.ScanRun) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonReport{ScanRun: run, Summary: run.Summary()})
}
