package state

import "strings"

// artifactRule matches a written file path and records it in an Artifacts
// slot. Rules are independent: every rule that matches a path applies, so a
// CSV written under outputs/plots/ is recorded as both a plot and the data
// path. Singular slots are last-write-wins across files; Plots appends.
type artifactRule struct {
	match func(path string) bool
	apply func(a *Artifacts, path string)
}

var artifactRules = []artifactRule{
	{
		match: func(p string) bool {
			return strings.Contains(p, "outputs/model") ||
				strings.HasSuffix(p, ".pkl") || strings.HasSuffix(p, ".pt") || strings.HasSuffix(p, ".joblib")
		},
		apply: func(a *Artifacts, p string) { a.ModelPath = p },
	},
	{
		match: func(p string) bool {
			return strings.Contains(p, "outputs/plots") || strings.HasSuffix(p, ".png")
		},
		apply: func(a *Artifacts, p string) { a.Plots = append(a.Plots, p) },
	},
	{
		match: func(p string) bool {
			return strings.HasSuffix(p, "report.md") || strings.Contains(p, "outputs/reports")
		},
		apply: func(a *Artifacts, p string) { a.ReportPath = p },
	},
	{
		match: func(p string) bool { return strings.HasSuffix(p, "app.py") },
		apply: func(a *Artifacts, p string) { a.AppPath = p },
	},
	{
		match: func(p string) bool { return strings.HasSuffix(p, "api.py") },
		apply: func(a *Artifacts, p string) { a.APIPath = p },
	},
	{
		match: func(p string) bool {
			return strings.HasSuffix(p, ".csv") || strings.Contains(p, "outputs/data")
		},
		apply: func(a *Artifacts, p string) { a.DataPath = p },
	},
}

func classifyArtifact(a *Artifacts, path string) {
	for _, r := range artifactRules {
		if r.match(path) {
			r.apply(a, path)
		}
	}
}
