package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/database"
	"github.com/roach88/molstore/internal/fault"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Groups []GroupReport `json:"groups"`
}

// GroupReport holds the problems found in one record group.
type GroupReport struct {
	Group  string   `json:"group"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		if g.Valid {
			fmt.Fprintf(&b, "%s: valid", g.Group)
			continue
		}
		fmt.Fprintf(&b, "%s: %d problem(s)", g.Group, len(g.Errors))
		for _, msg := range g.Errors {
			fmt.Fprintf(&b, "\n  - %s", msg)
		}
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [group...]",
		Short: "Check the stored layout of record groups",
		Long: `Check that every record group has its index scale and change log, and
that every property and settings dataset is attached to the index and as
long as it. All groups are checked when none is named.

Exits with status 1 when problems are found.

Examples:
  molstore validate --dir ./db
  molstore validate --dir ./db ligand --format json`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, groups []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if len(groups) == 0 {
		for _, g := range database.Groups {
			groups = append(groups, g.Name)
		}
	}

	db, err := opts.open(cmd.Context(), formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	result := ValidationResult{Valid: true}
	for _, group := range groups {
		formatter.VerboseLog("Validating group: %s", group)
		report := GroupReport{Group: group, Valid: true}
		if err := db.Validate(cmd.Context(), group); err != nil {
			if fault.IsUnavailable(err) {
				return formatter.Fail("validation aborted", err)
			}
			report.Valid = false
			report.Errors = splitErrors(err)
			result.Valid = false
		}
		result.Groups = append(result.Groups, report)
	}

	if !result.Valid {
		if err := formatter.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(result)
}

// splitErrors flattens errors.Join trees into messages.
func splitErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
