package bundler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/viteflow/viteflow/cli/util"
)

// DisplayBuild prints a one-line summary of a finished build
func DisplayBuild(w io.Writer, res *BuildResult) {
	_, _ = fmt.Fprintf(w, "Built %s (%s) in %s\n", res.OutputPath, util.FormatBytes(res.Bytes), res.Took.Round(time.Millisecond))
}

// DisplayAnalysis prints which inputs make up the bundle
func DisplayAnalysis(w io.Writer, result *AnalysisResult, showAll bool) {
	_, _ = fmt.Fprintf(w, "\n=== Bundle Analysis: %s ===\n", result.Name)
	_, _ = fmt.Fprintf(w, "Total bundle size: %s\n", util.FormatBytes(int64(result.TotalBytes)))

	if len(result.ExternalImports) > 0 {
		_, _ = fmt.Fprintln(w, "\nExternal imports:")
		for _, imp := range result.ExternalImports {
			_, _ = fmt.Fprintf(w, "  - %s\n", imp)
		}
	}

	if len(result.InputFiles) > 0 {
		_, _ = fmt.Fprintln(w, "\nBundle breakdown:")

		maxFiles := 10
		if showAll || len(result.InputFiles) < maxFiles {
			maxFiles = len(result.InputFiles)
		}

		maxPathLen := 0
		for _, file := range result.InputFiles[:maxFiles] {
			if n := len(truncatePath(file.Path, 50)); n > maxPathLen {
				maxPathLen = n
			}
		}

		for _, file := range result.InputFiles[:maxFiles] {
			displayPath := truncatePath(file.Path, 50)
			padding := strings.Repeat(" ", maxPathLen-len(displayPath))
			_, _ = fmt.Fprintf(w, "  %s%s  %8s  %5.1f%%\n",
				displayPath,
				padding,
				util.FormatBytes(int64(file.BytesInOutput)),
				file.Percentage,
			)
		}
		if remaining := len(result.InputFiles) - maxFiles; remaining > 0 {
			_, _ = fmt.Fprintf(w, "  ... and %d more files\n", remaining)
		}
	}

	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warn)
		}
	}

	_, _ = fmt.Fprintln(w)
}

// truncatePath shortens a path if it's too long
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
