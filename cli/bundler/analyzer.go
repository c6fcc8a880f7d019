package bundler

import (
	"path/filepath"
	"sort"
	"strings"
)

// analyzeMetafile summarizes which inputs contributed to the bundle
func analyzeMetafile(meta *Metafile, name string, root string) *AnalysisResult {
	result := &AnalysisResult{
		Name: name,
	}

	output, ok := meta.entryOutput()
	if !ok {
		return result
	}
	result.TotalBytes = output.Bytes

	for _, imp := range output.Imports {
		if imp.External {
			result.ExternalImports = append(result.ExternalImports, imp.Path)
		}
	}

	for inputPath, contrib := range output.Inputs {
		inputInfo, ok := meta.Inputs[inputPath]
		if !ok {
			continue
		}

		percentage := 0.0
		if result.TotalBytes > 0 {
			percentage = float64(contrib.BytesInOutput) / float64(result.TotalBytes) * 100
		}

		result.InputFiles = append(result.InputFiles, FileAnalysis{
			Path:          displayInputPath(inputPath, output.EntryPoint, root),
			Bytes:         inputInfo.Bytes,
			BytesInOutput: contrib.BytesInOutput,
			Percentage:    percentage,
			ImportCount:   len(inputInfo.Imports),
		})
	}

	// Largest contribution first, path breaks ties
	sort.Slice(result.InputFiles, func(i, j int) bool {
		a, b := result.InputFiles[i], result.InputFiles[j]
		if a.BytesInOutput != b.BytesInOutput {
			return a.BytesInOutput > b.BytesInOutput
		}
		return a.Path < b.Path
	})

	sort.Strings(result.ExternalImports)

	for _, f := range result.InputFiles {
		if strings.HasPrefix(f.Path, "node_modules/") && f.Percentage >= 50 {
			result.Warnings = append(result.Warnings, f.Path+" makes up most of the bundle")
		}
	}

	return result
}

// displayInputPath shortens a metafile input path for display
func displayInputPath(inputPath, entryPoint, root string) string {
	if inputPath == entryPoint {
		return "<entry>"
	}
	p := filepath.ToSlash(inputPath)
	if prefix := filepath.ToSlash(root) + "/"; strings.HasPrefix(p, prefix) {
		p = strings.TrimPrefix(p, prefix)
	}
	if i := strings.LastIndex(p, "node_modules/"); i > 0 {
		p = p[i:]
	}
	return p
}
