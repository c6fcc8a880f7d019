package bundler

import "sort"

// Metafile is the subset of esbuild's metafile JSON the analysis reads.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput is one source file seen by the bundler.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
}

// MetafileImport is an import edge. External imports are left to the page.
type MetafileImport struct {
	Path     string `json:"path"`
	External bool   `json:"external,omitempty"`
}

// MetafileOutput is one emitted file and the inputs it contains.
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

// InputContrib is how many bytes of an input ended up in an output.
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// entryOutput returns the output built from an entry point, or the only
// output when there is just one.
func (m *Metafile) entryOutput() (MetafileOutput, bool) {
	keys := make([]string, 0, len(m.Outputs))
	for key := range m.Outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if out := m.Outputs[key]; out.EntryPoint != "" || len(keys) == 1 {
			return out, true
		}
	}
	return MetafileOutput{}, false
}

// AnalysisResult summarizes what went into the bundle.
type AnalysisResult struct {
	Name            string
	TotalBytes      int
	InputFiles      []FileAnalysis
	ExternalImports []string
	Warnings        []string
}

// FileAnalysis is one input's share of the bundle.
type FileAnalysis struct {
	Path          string
	Bytes         int
	BytesInOutput int
	Percentage    float64
	ImportCount   int
}
