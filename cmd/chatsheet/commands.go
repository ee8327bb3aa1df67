package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/chatsheet/internal/config"
	"github.com/sadopc/chatsheet/internal/infer"
	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/theme"
	"github.com/sadopc/chatsheet/internal/ui/decide"
)

func runChat(cmd *cobra.Command, o *rootOptions, stdin io.Reader) error {
	e, err := o.open(cmd, stdin, true)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	decider := decide.Auto(e.lines, stdinFile(stdin), stdoutFile(out), theme.Get(e.cfg.Theme), e.cfg.Load.RenameSuffix)
	return e.session(out, decider).Run(contextOf(cmd))
}

// conflictDecider maps --on-conflict to a Decider. prompt picks the form or
// the line prompt depending on the terminal.
func conflictDecider(mode string, e *env, stdin io.Reader, out io.Writer) (loader.Decider, error) {
	suffix := e.cfg.Load.RenameSuffix
	switch strings.ToLower(mode) {
	case "", "prompt":
		return decide.Auto(e.lines, stdinFile(stdin), stdoutFile(out), theme.Get(e.cfg.Theme), suffix), nil
	case "abort":
		return decide.Abort, nil
	}
	kind, err := decide.ParseAction(mode)
	if err != nil {
		return nil, fmt.Errorf("--on-conflict: %w", err)
	}
	return decide.Policy{Action: kind, RenameSuffix: suffix}, nil
}

func newLoadCmd(o *rootOptions, stdin io.Reader) *cobra.Command {
	var (
		onConflict   string
		renameSuffix string
		delimiter    string
		sampleRows   int
		dryRun       bool
		replace      bool
	)
	cmd := &cobra.Command{
		Use:   "load <csv> <table>",
		Short: "Load a CSV file into a table",
		Long: `Load reads a CSV file, infers a type for each column and loads it into
the table. A missing table is created. When the table exists, columns that
are new or whose type differs are resolved with --on-conflict:

  prompt     ask for each column (default)
  overwrite  change the table column to the CSV's type
  rename     load the CSV column under <name><suffix>
  skip       do not load the column
  abort      load nothing`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd, stdin, true)
			if err != nil {
				return err
			}
			defer e.Close()

			applyLoadFlags(cmd, &e.cfg.Load, renameSuffix, delimiter, sampleRows)
			out := cmd.OutOrStdout()
			decider, err := conflictDecider(onConflict, e, stdin, out)
			if err != nil {
				return err
			}
			return e.session(out, decider).Load(contextOf(cmd), loader.Request{
				CSVPath: args[0],
				Table:   args[1],
				Replace: replace,
				DryRun:  dryRun,
				Infer: infer.Options{
					Delimiter:  e.cfg.Load.DelimiterRune(),
					SampleRows: e.cfg.Load.SampleRows,
				},
			})
		},
	}
	cmd.Flags().StringVar(&onConflict, "on-conflict", "prompt", "How to resolve column conflicts (prompt, overwrite, rename, skip, abort)")
	cmd.Flags().StringVar(&renameSuffix, "rename-suffix", "", "Suffix for renamed columns (default from config)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", `Field delimiter, "\t" for tabs (default from config)`)
	cmd.Flags().IntVar(&sampleRows, "sample-rows", 0, "Rows inspected per column during inference, 0 for all")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned statements without changing anything")
	cmd.Flags().BoolVar(&replace, "replace", false, "Drop and recreate the table from the file")
	return cmd
}

// applyLoadFlags overrides the load configuration with flags the user set.
func applyLoadFlags(cmd *cobra.Command, cfg *config.LoadConfig, renameSuffix, delimiter string, sampleRows int) {
	if cmd.Flags().Changed("rename-suffix") {
		cfg.RenameSuffix = renameSuffix
	}
	if cmd.Flags().Changed("delimiter") {
		cfg.Delimiter = delimiter
	}
	if cmd.Flags().Changed("sample-rows") {
		cfg.SampleRows = sampleRows
	}
}

func newQueryCmd(o *rootOptions, stdin io.Reader) *cobra.Command {
	var maxRows int
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd, stdin, true)
			if err != nil {
				return err
			}
			defer e.Close()
			if cmd.Flags().Changed("max-rows") {
				e.cfg.Results.MaxRows = maxRows
			}
			return e.session(cmd.OutOrStdout(), nil).Query(contextOf(cmd), strings.Join(args, " "))
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Rows to print, 0 for all (default from config)")
	return cmd
}

func newAskCmd(o *rootOptions, stdin io.Reader) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question in plain language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd, stdin, true)
			if err != nil {
				return err
			}
			defer e.Close()
			if yes {
				e.cfg.LLM.ConfirmWrites = false
			}
			return e.session(cmd.OutOrStdout(), nil).Ask(contextOf(cmd), strings.Join(args, " "))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Run generated statements that change data without asking")
	return cmd
}

func newTablesCmd(o *rootOptions, stdin io.Reader) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd, stdin, true)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.session(cmd.OutOrStdout(), nil).Exec(contextOf(cmd), "tables")
		},
	}
}

func newHistoryCmd(o *rootOptions, stdin io.Reader) *cobra.Command {
	var (
		search   string
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history [n]",
		Short: "Show past statements and questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := "history"
			switch {
			case clearAll:
				line += " clear"
			case search != "":
				line += " search " + search
			case len(args) == 1:
				if _, err := strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("history: %q is not a number", args[0])
				}
				line += " " + args[0]
			}
			e, err := o.open(cmd, stdin, false)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.session(cmd.OutOrStdout(), nil).Exec(contextOf(cmd), line)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show entries containing this text")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all history")
	return cmd
}
