package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/molstore/internal/database"
)

// InitResult describes a provisioned database.
type InitResult struct {
	Path        string   `json:"path"`
	Compression string   `json:"compression"`
	Groups      []string `json:"groups"`
	Mirror      string   `json:"mirror,omitempty"`
}

func (r InitResult) String() string {
	s := fmt.Sprintf("Database ready: %s (compression %s, groups %s)", r.Path, r.Compression, strings.Join(r.Groups, ", "))
	if r.Mirror != "" {
		s += "\nMirror: " + r.Mirror
	}
	return s
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a database",
		Long: `Create the database directory and its array file, provisioning every
record group that is missing. Running init on an existing database is safe.

Examples:
  molstore init --dir ./db
  molstore init --config molstore.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := database.New(cmd.Context(), opts.cfg.Dir, opts.databaseOptions())
	if err != nil {
		return formatter.Fail("failed to create database", err)
	}
	defer db.Close()

	res := InitResult{
		Path:        db.Path,
		Compression: db.Compression.String(),
		Mirror:      db.Mirror,
	}
	for _, g := range database.Groups {
		res.Groups = append(res.Groups, g.Name)
	}
	return formatter.Success(res)
}
