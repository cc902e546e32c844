package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/batchfile"
	"github.com/roach88/molstore/internal/changelog"
	"github.com/roach88/molstore/internal/database"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Overwrite  bool
	Properties []string
}

// ImportResult summarizes an applied batch.
type ImportResult struct {
	Group string `json:"group"`
	database.UpdateResult
}

func (r ImportResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d new, %d overwritten (token %s)", r.Group, len(r.New), len(r.Overwritten), r.Token)
	if len(r.New) > 0 {
		fmt.Fprintf(&b, "\n  new rows: %s", changelog.FormatRanges(r.New))
	}
	if len(r.Overwritten) > 0 {
		fmt.Fprintf(&b, "\n  overwritten rows: %s", changelog.FormatRanges(r.Overwritten))
	}
	for _, ds := range r.Datasets {
		fmt.Fprintf(&b, "\n  wrote %s", ds)
	}
	return b.String()
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <batch.yaml>",
		Short: "Apply a batch of records",
		Long: `Apply a YAML batch to its record group.

Records without a position are appended with freshly allocated index rows.
Records with a position are existing rows: only the property cells the batch
provides are written, unless overwrite is set, in which case their structures
and every property cell of the batch are rewritten.

A batch that fails classification or structure conversion writes nothing.
Property failures are reported after the remaining properties are written.

Examples:
  molstore import --dir ./db ligands.yaml
  molstore import --dir ./db --overwrite --property E_solv qd.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "rewrite existing records and every property cell")
	cmd.Flags().StringSliceVar(&opts.Properties, "property", nil, "only write these properties (repeatable)")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	batch, err := batchfile.Load(path)
	if err != nil {
		if outErr := formatter.Error(ErrCodeBatch, err.Error(), map[string]string{"file": path}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid batch", err)
	}
	frame, mask, err := batch.Frame()
	if err != nil {
		if outErr := formatter.Error(ErrCodeBatch, err.Error(), map[string]string{"file": path}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid batch", err)
	}
	formatter.VerboseLog("Loaded %d record(s) for group %s from %s", frame.Len(), batch.Group, path)

	db, err := opts.open(cmd.Context(), formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.FromFrame(cmd.Context(), frame, mask, batch.Group, database.UpdateOptions{
		Overwrite: batch.Overwrite || opts.Overwrite,
		Status:    batch.Status,
		JobType:   batch.JobType,
		Columns:   opts.Properties,
	})
	if err != nil && res.Token == "" {
		return formatter.Fail("import failed", err)
	}
	out := ImportResult{Group: batch.Group, UpdateResult: res}
	if err != nil {
		// Partially applied: report what was written, then the failures.
		if outErr := formatter.Error(ErrCodeGeneric, err.Error(), out); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "import partially applied", err)
	}
	return formatter.Success(out)
}
