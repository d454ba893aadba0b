package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskextract/internal/evaluate"
)

type evalFlags struct {
	dataset     string
	split       string
	concurrency int
	minAccuracy float64
}

func newEvalCmd(g *globalFlags) *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure extraction accuracy on a labeled dataset",
		Long: `Run the extractor over a labeled dataset and report accuracy.

A case passes when its validity matches and, for valid tasks, the title
contains the expected text and the assignee matches exactly. The command
fails when accuracy is below --min-accuracy.

Without --dataset the built-in dataset selected by --split is used:
"labeled" or "heldout".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cases []evaluate.Case
				err   error
			)
			if f.dataset != "" {
				cases, err = evaluate.Load(f.dataset)
			} else {
				cases, err = evaluate.BuiltinCases(f.split)
			}
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			concurrency := f.concurrency
			if concurrency == 0 {
				concurrency = a.extractor.Concurrency()
			}
			rep, err := evaluate.Run(cmd.Context(), a.extractor, cases, concurrency)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), rep, g.pretty); err != nil {
				return err
			}
			if rep.Accuracy < f.minAccuracy {
				return fmt.Errorf("accuracy %.3f below minimum %.3f (%d/%d passed)", rep.Accuracy, f.minAccuracy, rep.Passed, rep.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", "", "path to a YAML dataset")
	cmd.Flags().StringVar(&f.split, "split", evaluate.SplitLabeled, "built-in dataset split when --dataset is not set")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 0, "maximum pipelines in flight (default from config)")
	cmd.Flags().Float64Var(&f.minAccuracy, "min-accuracy", 0.95, "fail when accuracy is below this value")
	return cmd
}
