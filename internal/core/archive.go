package core

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/klauspost/compress/flate"
)

// Packager writes generated codes into a zip archive.
type Packager struct {
	Logger *slog.Logger

	// compress encodes one entry; nil means deflateEntry.
	compress func(data []byte) ([]byte, error)
}

// Pack stores every code under a unique name. Codes with placeholder
// filenames are skipped. A name that is already stored gets "_2", "_3" and
// so on before the extension. Each entry is compressed on its own before it
// reaches the zip stream, so an entry that fails is recorded in
// Archive.Skipped and the rest are still packed. Only a failure of the
// stream itself is returned. Entries carry no timestamps, so the same input always yields the same
// bytes.
func (p *Packager) Pack(codes []GeneratedCode) (*Archive, error) {
	logger := logging.OrDiscard(p.Logger)

	compress := p.compress
	if compress == nil {
		compress = deflateEntry
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	arc := &Archive{Requested: len(codes)}
	stored := make(map[string]bool, len(codes))
	occurrences := make(map[string]int, len(codes))

	for _, c := range codes {
		if IsProblematicName(c.Filename) {
			logger.Warn("not packing placeholder filename", "row", c.Row+1, "filename", c.Filename)
			arc.Skipped = append(arc.Skipped, newRowError(c.Row, c.Filename, ErrProblematicName, nil))
			continue
		}
		if err := checkEntryName(c.Filename); err != nil {
			logger.Warn("not packing entry", "row", c.Row+1, "filename", c.Filename, "error", err)
			arc.Skipped = append(arc.Skipped, newRowError(c.Row, c.Filename, ErrPackaging, err))
			continue
		}

		name := c.Filename
		occurrences[name]++
		if stored[name] {
			name = numberedName(c.Filename, occurrences[c.Filename], stored)
		}

		compressed, err := compress(c.PNG)
		if err != nil {
			logger.Warn("not packing entry", "row", c.Row+1, "filename", name, "error", err)
			arc.Skipped = append(arc.Skipped, newRowError(c.Row, name, ErrPackaging, err))
			continue
		}
		hdr := &zip.FileHeader{
			Name:               name,
			Method:             zip.Deflate,
			CRC32:              crc32.ChecksumIEEE(c.PNG),
			CompressedSize64:   uint64(len(compressed)),
			UncompressedSize64: uint64(len(c.PNG)),
		}
		if !isASCII(name) {
			hdr.Flags |= utf8NameFlag
		}
		// A header error is reported before anything reaches the stream.
		w, err := zw.CreateRaw(hdr)
		if err != nil {
			logger.Warn("not packing entry", "row", c.Row+1, "filename", name, "error", err)
			arc.Skipped = append(arc.Skipped, newRowError(c.Row, name, ErrPackaging, err))
			continue
		}
		if _, err := w.Write(compressed); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrPackaging, name, err)
		}

		stored[name] = true
		entry := ArchiveEntry{Name: name, Source: c.Filename, Renamed: name != c.Filename}
		if entry.Renamed {
			logger.Info("archive entry renamed", "from", c.Filename, "to", name)
		}
		arc.Entries = append(arc.Entries, entry)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalize: %v", ErrPackaging, err)
	}
	arc.Data = buf.Bytes()

	logger.Info("archive packed",
		"requested", arc.Requested,
		"stored", arc.Stored(),
		"skipped", len(arc.Skipped),
		"bytes", len(arc.Data),
	)
	return arc, nil
}

// utf8NameFlag marks an entry name as UTF-8 (zip general purpose bit 11).
const utf8NameFlag = 0x800

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// deflateEntry compresses data the way zip.Deflate entries are stored.
func deflateEntry(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// numberedName returns the first name_N.png, starting at n, that is not in stored.
func numberedName(name string, n int, stored map[string]bool) string {
	stem := strings.TrimSuffix(name, pngExt)
	ext := name[len(stem):]
	if n < 2 {
		n = 2
	}
	for ; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if !stored[candidate] {
			return candidate
		}
	}
}

func checkEntryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty filename")
	}
	if strings.ContainsAny(name, ReservedChars) {
		return fmt.Errorf("filename %q contains a reserved character", name)
	}
	return nil
}

// Renamed returns how many entries were stored under a new name.
func (a *Archive) Renamed() int {
	n := 0
	for _, e := range a.Entries {
		if e.Renamed {
			n++
		}
	}
	return n
}

// Entry returns the stored bytes of one entry.
func (a *Archive) Entry(name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, name)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListArchive returns the entry names of a zip in stored order.
func ListArchive(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names, nil
}

// Verify re-reads the archive and checks that its entries match what Pack
// recorded.
func (a *Archive) Verify() error {
	names, err := ListArchive(a.Data)
	if err != nil {
		return err
	}
	if len(names) != len(a.Entries) {
		return fmt.Errorf("%w: archive holds %d entries, expected %d", ErrPackaging, len(names), len(a.Entries))
	}
	for i, n := range names {
		if n != a.Entries[i].Name {
			return fmt.Errorf("%w: entry %d is %q, expected %q", ErrPackaging, i, n, a.Entries[i].Name)
		}
	}
	return nil
}
