package core

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetqr/internal/logging"
)

const (
	// ReservedChars may not appear in output filenames; each is replaced with '-'.
	ReservedChars = `<>:"/\|?*`

	// MaxFilenameLength is the longest accepted filename in characters,
	// extension included.
	MaxFilenameLength = 255

	// MaxSeparatorLength bounds the separator placed between components.
	MaxSeparatorLength = 3

	// validationSampleRows is how many leading rows Validate builds names for.
	validationSampleRows = 5

	// Placeholders for components with no usable value.
	missingPlaceholder = "missing"
	blankPlaceholder   = "empty"

	// nanToken is what a stringified numeric NaN leaves in a name.
	nanToken = "nan"

	// hashSuffixLen is the length of "_" plus the hex digest Derive
	// appends to repeated names.
	hashSuffixLen = 1 + 8

	pngExt = ".png"
)

// problematicPatterns are placeholder pairs that only appear when several
// filename components are unusable at once.
var problematicPatterns = []string{
	"missing_missing",
	"nan_nan",
	"item_item",
	"empty_empty",
}

var reservedReplacer = strings.NewReplacer(
	"<", "-", ">", "-", ":", "-", `"`, "-",
	"/", "-", `\`, "-", "|", "-", "?", "-", "*", "-",
)

// SanitizeFilename replaces every reserved character with '-'.
func SanitizeFilename(name string) string {
	return reservedReplacer.Replace(name)
}

// IsProblematicName reports whether name still contains a placeholder pair
// or the literal "nan". Derive never produces "nan", so a match means the
// name did not come from Derive or a stage changed it afterwards. Matching is
// case-sensitive: "Nan Smith.png" is a real name.
func IsProblematicName(name string) bool {
	for _, p := range problematicPatterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return strings.Contains(name, nanToken)
}

// ValidateFilenameSpec checks spec against rs before any generation. It
// rejects an unusable separator, unknown or missing columns, and any of the
// first few rows whose filename would exceed MaxFilenameLength. Errors wrap
// ErrInvalidFilenameSpec.
func ValidateFilenameSpec(rs *RowSet, spec FilenameSpec) error {
	if spec.URLColumn == "" {
		return specError("no URL column selected")
	}
	if !rs.HasColumn(spec.URLColumn) {
		return specError("URL column not found: %q", spec.URLColumn)
	}
	return ValidateFilenameParts(rs, spec.Columns, spec.Separator)
}

// ValidateFilenameParts checks the filename columns and separator alone.
func ValidateFilenameParts(rs *RowSet, columns []string, separator string) error {
	if strings.ContainsAny(separator, ReservedChars) {
		return specError("separator %q contains a reserved character (%s)", separator, ReservedChars)
	}
	if utf8.RuneCountInString(separator) > MaxSeparatorLength {
		return specError("separator %q is longer than %d characters", separator, MaxSeparatorLength)
	}
	if len(columns) == 0 {
		return specError("at least one filename column is required")
	}

	idx, err := columnIndexes(rs, columns)
	if err != nil {
		return err
	}

	for i := 0; i < rs.Len() && i < validationSampleRows; i++ {
		name := buildFilename(rs, i, idx, separator)
		if n := utf8.RuneCountInString(name); n > MaxFilenameLength {
			return specError("row %d filename is %d characters, limit is %d", i+1, n, MaxFilenameLength)
		}
	}
	return nil
}

func columnIndexes(rs *RowSet, columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	for i, col := range columns {
		pos, ok := rs.index[col]
		if !ok {
			return nil, specError("filename column not found: %q", col)
		}
		idx[i] = pos
	}
	return idx, nil
}

// filenameComponent renders one cell as a filename part.
func filenameComponent(c Cell) string {
	switch c.Kind {
	case CellAbsent:
		return missingPlaceholder
	case CellBlank:
		return blankPlaceholder
	}
	return strings.TrimSpace(c.Text)
}

func buildFilename(rs *RowSet, row int, idx []int, separator string) string {
	parts := make([]string, len(idx))
	for i, col := range idx {
		parts[i] = filenameComponent(rs.at(row, col))
	}
	name := SanitizeFilename(strings.Join(parts, separator) + pngExt)
	return strings.ReplaceAll(name, nanToken, missingPlaceholder)
}

// DeriveResult is the Filename Deriver's output.
type DeriveResult struct {
	Rows       []PreparedRow
	Dropped    int // rows removed because the URL cell was absent or blank
	Duplicates []DuplicateName
}

// Renamed returns how many rows were given a disambiguated filename.
func (d *DeriveResult) Renamed() int {
	n := 0
	for _, r := range d.Rows {
		if r.Disambiguated() {
			n++
		}
	}
	return n
}

// Derive builds a filename for every row whose URL cell has content and
// makes the names unique. The first row with a given name keeps it; later
// rows get "_" and an 8 character hash of the name, URL and occurrence
// inserted before the extension, so reruns produce the same names. The
// stem is shortened when needed so a suffixed name stays within
// MaxFilenameLength.
func Derive(rs *RowSet, spec FilenameSpec, logger *slog.Logger) (*DeriveResult, error) {
	logger = logging.OrDiscard(logger)

	urlCol, ok := rs.index[spec.URLColumn]
	if !ok {
		return nil, specError("URL column not found: %q", spec.URLColumn)
	}
	if len(spec.Columns) == 0 {
		return nil, specError("at least one filename column is required")
	}
	idx, err := columnIndexes(rs, spec.Columns)
	if err != nil {
		return nil, err
	}

	res := &DeriveResult{Rows: make([]PreparedRow, 0, rs.Len())}
	for i := 0; i < rs.Len(); i++ {
		cell := rs.at(i, urlCol)
		if cell.Kind != CellPresent {
			res.Dropped++
			continue
		}
		name := buildFilename(rs, i, idx, spec.Separator)
		res.Rows = append(res.Rows, PreparedRow{
			Row:       i,
			URL:       strings.TrimSpace(cell.Text),
			Candidate: name,
			Filename:  name,
		})
	}

	res.Duplicates = disambiguate(res.Rows)

	if len(res.Duplicates) > 0 {
		logger.Info("duplicate filenames disambiguated",
			"names", len(res.Duplicates), "renamed", res.Renamed())
		for _, d := range res.Duplicates {
			logger.Debug("duplicate filename", "name", d.Name, "count", d.Count)
		}
	}
	if res.Dropped > 0 {
		logger.Info("rows without a URL dropped", "dropped", res.Dropped)
	}

	return res, nil
}

// disambiguate rewrites repeated names in place and returns the repeated
// candidates with their counts, in order of first appearance.
func disambiguate(rows []PreparedRow) []DuplicateName {
	counts := make(map[string]int, len(rows))
	var order []string
	for _, r := range rows {
		if counts[r.Candidate] == 0 {
			order = append(order, r.Candidate)
		}
		counts[r.Candidate]++
	}

	var dups []DuplicateName
	for _, name := range order {
		if counts[name] > 1 {
			dups = append(dups, DuplicateName{Name: name, Count: counts[name]})
		}
	}
	if len(dups) == 0 {
		return nil
	}

	taken := make(map[string]bool, len(counts))
	for name := range counts {
		taken[name] = true
	}

	seen := make(map[string]int, len(dups))
	for i := range rows {
		r := &rows[i]
		if counts[r.Candidate] < 2 {
			continue
		}
		seen[r.Candidate]++
		occurrence := seen[r.Candidate]
		if occurrence == 1 {
			continue
		}

		stem := truncateRunes(strings.TrimSuffix(r.Candidate, pngExt), MaxFilenameLength-hashSuffixLen-len(pngExt))
		for salt := occurrence; ; salt++ {
			name := stem + "_" + shortHash(r.Candidate, r.URL, salt) + pngExt
			if !taken[name] {
				r.Filename = name
				taken[name] = true
				break
			}
		}
	}
	return dups
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func shortHash(name, url string, occurrence int) string {
	sum := sha256.Sum256([]byte(name + "\x00" + url + "\x00" + strconv.Itoa(occurrence)))
	return hex.EncodeToString(sum[:4])
}
