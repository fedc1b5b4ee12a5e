package core

import (
	"regexp"
)

// DefaultSampleRows is how many non-missing values are inspected per column.
const DefaultSampleRows = 5

// urlPattern accepts http and https URLs whose host is a dotted domain name,
// localhost or an IPv4 literal, with an optional port and an optional path or
// query without whitespace.
var urlPattern = regexp.MustCompile(`(?i)^(?:http|https)://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)` +
	`|localhost` +
	`|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// LooksLikeURL reports whether s is shaped like an http(s) URL.
func LooksLikeURL(s string) bool {
	return urlPattern.MatchString(s)
}

// ColumnScore is the sample evidence for one column.
type ColumnScore struct {
	Sampled int `json:"sampled"`
	Matched int `json:"matched"`
}

// IsURL reports whether at least 60% of the sampled values look like URLs.
func (s ColumnScore) IsURL() bool {
	return s.Sampled > 0 && s.Matched*10 >= s.Sampled*6
}

// ColumnClassification lists the columns whose sampled values are mostly
// URLs, in the RowSet's column order.
type ColumnClassification struct {
	URLColumns []string               `json:"url_columns"`
	Scores     map[string]ColumnScore `json:"scores"`
}

// Suggested returns the default URL column, the first classified one.
func (c ColumnClassification) Suggested() (string, bool) {
	if len(c.URLColumns) == 0 {
		return "", false
	}
	return c.URLColumns[0], true
}

// Classify samples up to sampleRows non-missing values from each column.
// Columns where nothing could be sampled are never classified as URL columns.
// A sampleRows value below one uses DefaultSampleRows.
func Classify(rs *RowSet, sampleRows int) ColumnClassification {
	if sampleRows < 1 {
		sampleRows = DefaultSampleRows
	}

	out := ColumnClassification{
		URLColumns: []string{},
		Scores:     make(map[string]ColumnScore, len(rs.columns)),
	}

	for col, name := range rs.columns {
		var score ColumnScore
		for i := 0; i < rs.Len() && score.Sampled < sampleRows; i++ {
			cell := rs.at(i, col)
			if cell.Kind == CellAbsent {
				continue
			}
			score.Sampled++
			if LooksLikeURL(cell.Text) {
				score.Matched++
			}
		}

		out.Scores[name] = score
		if score.IsURL() {
			out.URLColumns = append(out.URLColumns, name)
		}
	}

	return out
}
