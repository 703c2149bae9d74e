package main

import (
	"fmt"

	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd(opts *options) *cobra.Command {
	var (
		units    []string
		hasAudio bool
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the format checklist the models are given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := opts.ruleSet()
			if err != nil {
				return err
			}
			cs := rs.Constraints(rules.ConstraintOptions{
				Envelope:      true,
				HasAudio:      hasAudio,
				ExistingUnits: units,
			})
			fmt.Fprint(cmd.OutOrStdout(), rules.Checklist(cs))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&units, "units", nil, "Units already in the mod")
	cmd.Flags().BoolVar(&hasAudio, "audio", false, "Render the rules for a request with an audio clip")
	return cmd
}
