// Command modtool checks and repairs unit definition files offline and can
// queue requests for a running worker.
package main

import (
	"fmt"
	"os"

	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/spf13/cobra"
)

type options struct {
	rulesFile string
}

func (o *options) ruleSet() (*rules.RuleSet, error) {
	return rules.LoadFile(o.rulesFile)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "modtool",
		Short: "Check, repair and queue modforge unit files",
		Long: `modtool works on unit definition files without a model:

  modtool validate FILE...     syntax check and rule lint
  modtool reconcile FILE       force the unit name into [core]
  modtool rules                print the format checklist
  modtool enqueue MESSAGE      queue a request for a worker`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", os.Getenv("RULES_FILE"),
		"Rule-set YAML file; the embedded rules are used when empty")

	root.AddCommand(
		newValidateCmd(opts),
		newReconcileCmd(opts),
		newRulesCmd(opts),
		newEnqueueCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
