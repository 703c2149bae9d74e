package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jwebster45206/modforge/pkg/ini"
	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/spf13/cobra"
)

var errInvalidFiles = errors.New("one or more files are invalid")

type fileReport struct {
	File     string        `json:"file"`
	Result   ini.Result    `json:"result"`
	Findings []ini.Finding `json:"findings"`
}

func newValidateCmd(opts *options) *cobra.Command {
	var (
		units    []string
		hasAudio bool
		asJSON   bool
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check unit files for syntax errors and rule violations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := opts.ruleSet()
			if err != nil {
				return err
			}
			reports := make([]fileReport, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				reports = append(reports, check(path, string(data), rs, ini.LintOptions{
					AllowedBuildTargets: units,
					HasAudio:            hasAudio,
				}))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				printReports(out, reports)
			}

			for _, r := range reports {
				if !r.Result.IsValid || (strict && len(r.Findings) > 0) {
					return errInvalidFiles
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&units, "units", nil, "Unit names a canBuild section may reference")
	cmd.Flags().BoolVar(&hasAudio, "audio", false, "Allow sound keys, as when an audio clip was attached")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on lint findings, not only on syntax errors")
	return cmd
}

func check(path, content string, rs *rules.RuleSet, lint ini.LintOptions) fileReport {
	findings := ini.Lint(content, rs, lint)
	if findings == nil {
		findings = []ini.Finding{}
	}
	return fileReport{File: path, Result: ini.Validate(content), Findings: findings}
}

func printReports(w io.Writer, reports []fileReport) {
	for _, r := range reports {
		switch {
		case !r.Result.IsValid && r.Result.Line > 0:
			fmt.Fprintf(w, "%s: invalid (line %d): %s\n", r.File, r.Result.Line, r.Result.Error)
		case !r.Result.IsValid:
			fmt.Fprintf(w, "%s: invalid: %s\n", r.File, r.Result.Error)
		default:
			fmt.Fprintf(w, "%s: ok\n", r.File)
		}
		for _, f := range r.Findings {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
