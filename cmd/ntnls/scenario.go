package main

import (
	"github.com/spf13/cobra"

	"github.com/jeongseonghan/ntn-linksim/internal/scenario"
)

func newRunScenarioCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "run-scenario <file.yaml>",
		Short: "Run a single scenario from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			return scenario.Run(cmd.Context(), sc, out, a.scenarioOptions())
		},
	}
	cmd.Flags().StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	return cmd
}

func newReproduceCmd(a *app) *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "reproduce",
		Short: "Run every scenario in a directory",
		Long: `Run every *.yaml scenario in --scenario-dir in name order. Each scenario
writes into <out>/<file stem>/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return scenario.ReproduceAll(cmd.Context(), dir, out, a.scenarioOptions())
		},
	}
	cmd.Flags().StringVar(&dir, "scenario-dir", "scenarios", "directory containing scenario YAML files")
	cmd.Flags().StringVar(&out, "out", "docs", "root output directory for artifacts")
	return cmd
}

func (a *app) scenarioOptions() scenario.Options {
	return scenario.Options{Runner: a.runner(), Logger: a.log}
}
