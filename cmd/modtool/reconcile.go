package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/modforge/internal/forge"
	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *options) *cobra.Command {
	var (
		unit  string
		write bool
		diff  bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile FILE",
		Short: "Set the name key of [core] to the unit name",
		Long: `reconcile rewrites the identifier of a unit file. The unit name defaults
to the file name without its extension and is normalized to snake_case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := opts.ruleSet()
			if err != nil {
				return err
			}
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			if unit == "" {
				unit = fileStem(path)
			}
			name := mod.ToUnitName(unit)
			if !rs.ValidUnitName(name) {
				return fmt.Errorf("%q is not a valid unit name", unit)
			}

			before := string(data)
			after := ini.Reconcile(before, name)
			out := cmd.OutOrStdout()
			switch {
			case diff:
				fmt.Fprint(out, forge.LineDiff(before, after))
			case write:
				if before == after {
					fmt.Fprintf(out, "%s: unchanged\n", path)
					return nil
				}
				if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: name set to %s\n", path, name)
			default:
				fmt.Fprint(out, after)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "Unit name; defaults to the file name")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the file in place")
	cmd.Flags().BoolVar(&diff, "diff", false, "Print a line diff instead of the file")
	return cmd
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
