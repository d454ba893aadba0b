package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

type extractFlags struct {
	source  string
	noCache bool
}

func newExtractCmd(g *globalFlags) *cobra.Command {
	f := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract [text|-]",
		Short: "Extract a task from one message",
		Long: `Extract a structured task from a single message.

The message is taken from the argument, or read from stdin when the
argument is "-" or missing.

Examples:
  taskextract extract --source chat "Hey Bob, could you finish the code review?"
  cat email.txt | taskextract extract --source email`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := task.ParseSourceType(f.source)
			if err != nil {
				return err
			}
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.extractor.ExtractTask(cmd.Context(), text, source, !f.noCache)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res, g.pretty)
		},
	}
	addSourceFlags(cmd, &f.source, &f.noCache)
	return cmd
}

type batchFlags struct {
	source      string
	noCache     bool
	concurrency int
}

func newBatchCmd(g *globalFlags) *cobra.Command {
	f := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Extract tasks from many messages, one per line",
		Long: `Extract tasks from a file (or stdin) holding one message per line.

Results are written as a JSON array in input order. A line that fails
validation (for example an empty line) yields a result with "error" set
and does not stop the batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := task.ParseSourceType(f.source)
			if err != nil {
				return err
			}
			r, closeFn, err := openInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			defer closeFn()
			texts, err := readLines(r)
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
			results, err := a.extractor.BatchExtractTasks(cmd.Context(), texts, concurrency, source, !f.noCache)
			if results != nil {
				if werr := writeJSON(cmd.OutOrStdout(), results, g.pretty); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	addSourceFlags(cmd, &f.source, &f.noCache)
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 0, "maximum pipelines in flight (default from config)")
	return cmd
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify the intent of messages",
		Long: `Classify the intent of each argument, or of each stdin line when no
arguments are given. Results are written as a JSON array in input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				var err error
				if texts, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.extractor.BatchClassifyIntents(cmd.Context(), texts, !noCache)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results, g.pretty)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the intent cache")
	return cmd
}

func addSourceFlags(cmd *cobra.Command, source *string, noCache *bool) {
	cmd.Flags().StringVarP(source, "source", "s", "email", "source type: email, chat or transcript")
	cmd.Flags().BoolVar(noCache, "no-cache", false, "bypass the extraction cache")
}

// readInput returns the single argument, or all of stdin when the argument
// is "-" or absent.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func openInput(stdin io.Reader, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// readLines splits r into lines, keeping empty interior lines so that
// output positions match input lines. A trailing newline does not add an
// element.
func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return lines, nil
}

const maxLineBytes = 1 << 20
