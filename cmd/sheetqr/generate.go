package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/sheetqr/internal/core"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	sheetFlags
	urlColumn   string
	nameColumns []string
	separator   string
	moduleSize  int
	border      int
	resolution  string
	out         string
	workers     int
}

func newGenerateCmd() *cobra.Command {
	var o generateOptions
	def := core.DefaultRenderSpec()

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Render one QR code per row and write them to a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], &o)
		},
	}
	o.register(cmd)
	f := cmd.Flags()
	f.StringVar(&o.urlColumn, "url-column", "", "Column holding the URLs (default: detected)")
	f.StringSliceVar(&o.nameColumns, "name-columns", nil, "Columns joined into each filename, in order")
	f.StringVar(&o.separator, "separator", "_", "Text placed between filename parts")
	f.IntVar(&o.moduleSize, "module-size", def.ModuleSize, "Pixels per QR module (1-20)")
	f.IntVar(&o.border, "border", def.Border, "Quiet zone width in modules (0-10)")
	f.StringVar(&o.resolution, "resolution", "", "Resize every image to this many pixels per side (default: natural size)")
	f.StringVarP(&o.out, "out", "o", core.ArchiveFileName, "Archive path")
	f.IntVar(&o.workers, "workers", 0, "Parallel renderers (default: number of CPUs)")
	_ = cmd.MarkFlagRequired("name-columns")
	return cmd
}

func runGenerate(cmd *cobra.Command, path string, o *generateOptions) error {
	ctx := cmd.Context()
	logger := o.logger()

	_, rs, err := o.openWorkbook(ctx, path, logger)
	if err != nil {
		return err
	}

	urlColumn := o.urlColumn
	if urlColumn == "" {
		suggested, ok := core.Classify(rs, core.DefaultSampleRows).Suggested()
		if !ok {
			return fmt.Errorf("no URL column detected in sheet %q, pass --url-column", rs.Name())
		}
		urlColumn = suggested
		fmt.Fprintf(cmd.ErrOrStderr(), "using URL column %q\n", urlColumn)
	}

	resolution, ok := core.ParseOutputResolution(o.resolution)
	if !ok {
		logger.Warn("resolution is not a number, keeping natural size", "value", o.resolution)
	}

	p := &core.Pipeline{
		Renderer: core.NewQRRenderer(),
		Workers:  o.workers,
		Logger:   logger,
	}
	fspec := core.FilenameSpec{URLColumn: urlColumn, Columns: o.nameColumns, Separator: o.separator}
	rspec := core.RenderSpec{ModuleSize: o.moduleSize, Border: o.border, OutputResolution: resolution}

	result, err := p.Run(ctx, rs, fspec, rspec)
	if err != nil {
		if result != nil && result.Report != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), result.Report.Summary())
		}
		if errors.Is(err, core.ErrInvalidFilenameSpec) || errors.Is(err, core.ErrInvalidRenderSpec) {
			return userError(err)
		}
		return err
	}

	if dir := filepath.Dir(o.out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(o.out, result.Archive.Data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	out := cmd.OutOrStdout()
	report := result.Report
	fmt.Fprintln(out, report.Summary())
	for _, d := range report.Duplicates {
		fmt.Fprintf(out, "  duplicate name %s: %d rows\n", d.Name, d.Count)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  row %d (%s): %s %s\n", f.Row, f.Filename, f.Kind, f.Reason)
	}
	fmt.Fprintf(out, "wrote %s (%d files, %d bytes)\n", o.out, report.Packed, len(result.Archive.Data))
	return nil
}
