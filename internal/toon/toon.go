// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/codeclass/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeGraph converts an encoded file into TOON format.
func EncodeGraph(g *model.Graph) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("file: %s", encodeValue(g.File)))
	if g.Label != "" {
		parts = append(parts, fmt.Sprintf("label: %s", encodeValue(g.Label)))
	}

	nodeRows := make([][]string, g.NumNodes())
	for i := range nodeRows {
		nodeRows[i] = []string{strconv.Itoa(i), g.NodeTypes[i], g.NodeFeatures[i]}
	}
	parts = append(parts, formatTabular("nodes", []string{"id", "type", "feature"}, nodeRows))

	edgeRows := make([][]string, g.NumEdges())
	for i := range edgeRows {
		edgeRows[i] = []string{strconv.Itoa(i), g.EdgeTypes[i]}
	}
	parts = append(parts, formatTabular("edges", []string{"id", "type"}, edgeRows))

	incRows := make([][]string, g.NumIncidences())
	for i := range incRows {
		inc := g.Incidence(i)
		incRows[i] = []string{strconv.Itoa(inc.Edge), strconv.Itoa(inc.Node), inc.Role.String()}
	}
	parts = append(parts, formatTabular("incidences", []string{"edge", "node", "role"}, incRows))

	return strings.Join(parts, "\n")
}

// EncodePredictions converts classifier output into TOON format: one row per
// file and candidate, plus an accuracy line when any file has a known label.
func EncodePredictions(preds []model.Prediction) string {
	var parts []string

	var rows [][]string
	for i := range preds {
		p := &preds[i]
		for rank, c := range p.Candidates {
			rows = append(rows, []string{
				p.File,
				strconv.Itoa(rank + 1),
				c.Label,
				fmt.Sprintf("%.4f", c.Prob),
			})
		}
	}
	parts = append(parts, formatTabular("predictions", []string{"file", "rank", "label", "prob"}, rows))

	var correct, labelled int
	for i := range preds {
		if preds[i].Label == "" {
			continue
		}
		labelled++
		if preds[i].Correct() {
			correct++
		}
	}
	if labelled > 0 {
		parts = append(parts, fmt.Sprintf("accuracy: %d/%d", correct, labelled))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
