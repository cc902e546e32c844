package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/database"
)

// MirrorOptions holds flags for the mirror command.
type MirrorOptions struct {
	*RootOptions
	Overwrite bool
}

// MirrorResult summarizes a mirror export.
type MirrorResult struct {
	Group      string `json:"group"`
	Collection string `json:"collection"`
	Inserted   int    `json:"inserted"`
	Replaced   int    `json:"replaced"`
	Skipped    int    `json:"skipped"`
}

func (r MirrorResult) String() string {
	return fmt.Sprintf("%s -> %s: %d inserted, %d replaced, %d skipped", r.Group, r.Collection, r.Inserted, r.Replaced, r.Skipped)
}

// NewMirrorCommand creates the mirror command.
func NewMirrorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MirrorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mirror <group>",
		Short: "Export a group to the document mirror",
		Long: `Export every record of a group, without structures, to the document
mirror named by the "mirror" config setting. Records already in the mirror
are skipped unless --overwrite is given.

Examples:
  molstore mirror --config molstore.cue ligand
  molstore mirror --config molstore.cue qd --overwrite`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace documents already in the mirror")

	return cmd
}

func runMirror(opts *MirrorOptions, group string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.cfg.Mirror == "" {
		if outErr := formatter.Error(ErrCodeNoMirror, "no mirror configured", nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "no mirror configured", database.ErrNoMirror)
	}

	db, err := opts.open(cmd.Context(), formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.UpdateMirror(cmd.Context(), group, opts.Overwrite)
	if err != nil {
		return formatter.Fail("mirror update failed", err)
	}
	return formatter.Success(MirrorResult{
		Group:      group,
		Collection: database.Collections[group].Name,
		Inserted:   res.Inserted,
		Replaced:   res.Replaced,
		Skipped:    res.Skipped,
	})
}
