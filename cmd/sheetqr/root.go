package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/JonMunkholm/sheetqr/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetqr",
		Short: "Generate QR codes from a spreadsheet column",
		Long: `sheetqr reads an .xlsx, .xlsm or .csv file, encodes one column of URLs
as QR codes and packs the images into a zip archive named after other columns.`,
		SilenceUsage: true,
	}
	root.AddCommand(newInspectCmd(), newGenerateCmd())
	return root
}

// sheetFlags are shared by every command that reads an input file.
type sheetFlags struct {
	sheet       string
	maxFileSize int64
	debug       bool
}

func (f *sheetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Sheet to use (default: first sheet with data)")
	cmd.Flags().Int64Var(&f.maxFileSize, "max-file-size", 50<<20, "Largest input file accepted, in bytes")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Log every row to stderr")
}

func (f *sheetFlags) logger() *slog.Logger {
	if f.debug {
		return logging.New("debug", "text", os.Stderr)
	}
	return logging.New("warn", "text", os.Stderr)
}

// openWorkbook loads path and returns the workbook with the selected sheet.
func (f *sheetFlags) openWorkbook(ctx context.Context, path string, logger *slog.Logger) (*core.Workbook, *core.RowSet, error) {
	loader := &core.Loader{MaxFileSize: f.maxFileSize, Logger: logger}
	wb, err := loader.LoadFile(ctx, path)
	if err != nil {
		return nil, nil, userError(err)
	}
	if wb.Len() == 0 {
		return nil, nil, userError(core.ErrEmptyWorkbook)
	}

	if f.sheet == "" {
		return wb, wb.Sheets()[0], nil
	}
	rs, ok := wb.Sheet(f.sheet)
	if !ok {
		return nil, nil, fmt.Errorf("sheet %q not found (sheets: %v)", f.sheet, wb.SheetNames())
	}
	return wb, rs, nil
}

// userError keeps the cause and adds the user-facing message and action.
func userError(err error) error {
	return fmt.Errorf("%w\n%s", err, core.FormatUserError(err))
}
