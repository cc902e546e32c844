package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/arrayfile"
	"github.com/roach88/molstore/internal/database"
	"github.com/roach88/molstore/internal/frame"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/settings"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Keys        []string
	KeepMissing bool
	Properties  []string
	Molecules   bool
}

// DumpResult holds the records of one group.
type DumpResult struct {
	Group   string           `json:"group"`
	Records []frame.Document `json:"records"`

	frame *frame.Frame
}

func (r DumpResult) String() string {
	f := r.frame
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d record(s)", r.Group, f.Len())
	for i, key := range f.Index {
		fmt.Fprintf(&b, "\n[%d] %s opt=%t", f.Position[i], key, f.Opt[i])
		if f.Molecules != nil {
			fmt.Fprintf(&b, "\n    atoms=%d bonds=%d", len(f.Molecules[i].Atoms), len(f.Molecules[i].Bonds))
		}
		for _, p := range f.Properties {
			fmt.Fprintf(&b, "\n    %s:", p.Name)
			if len(p.SubColumns) == 0 {
				fmt.Fprintf(&b, " %s", cellText(p.Data, i, 0))
				continue
			}
			for j, sub := range p.SubColumns {
				fmt.Fprintf(&b, " %s=%s", sub, cellText(p.Data, i, j))
			}
		}
		for _, name := range f.SettingsNames() {
			tree := f.Settings[name][i]
			if tree == nil {
				continue
			}
			data, err := settings.Canonical(tree)
			if err != nil {
				fmt.Fprintf(&b, "\n    settings %s: <%v>", name, err)
				continue
			}
			fmt.Fprintf(&b, "\n    settings %s: %s", name, data)
		}
	}
	return b.String()
}

func cellText(a *arrayfile.Array, i, j int) string {
	if a.IsSentinel(i, j) {
		return "-"
	}
	return arrayfile.FormatValue(a.At(i, j, 0))
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <group>",
		Short: "Print the records of a group",
		Long: `Print the records of a record group ordered by index position, with
their properties and job settings. Missing cells print as "-" in text
output and as null in JSON output.

Keys are given as their parts separated by whitespace. With --keep-missing,
requested keys that are not stored are printed as empty records at
position -1.

Examples:
  molstore dump --dir ./db ligand
  molstore dump --dir ./db ligand --key "C[O-] O2" --property E_solv
  molstore dump --dir ./db qd --molecules --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Keys, "key", nil, "only dump this record (repeatable)")
	cmd.Flags().BoolVar(&opts.KeepMissing, "keep-missing", false, "print requested keys that are not stored")
	cmd.Flags().StringSliceVar(&opts.Properties, "property", nil, "only dump these properties (repeatable)")
	cmd.Flags().BoolVar(&opts.Molecules, "molecules", false, "include structures")

	return cmd
}

func runDump(opts *DumpOptions, group string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	coll, ok := database.Collections[group]
	if !ok {
		if outErr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("unknown record group %q", group), nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitCommandError, "unknown record group")
	}

	db, err := opts.open(cmd.Context(), formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	read := database.ReadOptions{Properties: opts.Properties, Molecules: opts.Molecules, KeepMissing: opts.KeepMissing}
	for _, k := range opts.Keys {
		read.Keys = append(read.Keys, ir.Key(strings.Fields(k)))
	}
	f, err := db.ToFrame(cmd.Context(), group, read)
	if err != nil {
		return formatter.Fail("dump failed", err)
	}

	docs, err := frame.Documents(f, coll.KeyNames)
	if err != nil {
		return formatter.Fail("dump failed", err)
	}
	if f.Molecules != nil {
		for i, doc := range docs {
			doc[ir.CategoryMol] = f.Molecules[i]
		}
	}
	return formatter.Success(DumpResult{Group: group, Records: docs, frame: f})
}
