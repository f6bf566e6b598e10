package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lecturenotes/internal/api"
	"lecturenotes/internal/client"
	"lecturenotes/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved lectures",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			_, err := ctx.requireUser()
			return err
		},
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistorySearchCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved lectures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(c *client.Client) error {
				records, err := c.History(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.HistoryListResponse{Records: records})
				}
				printHistoryTable(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printHistoryTable(out io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No saved lectures")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rec.ID),
			rec.Filename,
			fmt.Sprintf("%d", len(rec.Notes)),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "ID", AlignEnd: true},
		{Header: "File", MaxWidth: 48},
		{Header: "Slides", AlignEnd: true},
		{Header: "Saved"},
	}, rows))
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "show <filename>",
		Short: "Print the notes of a saved lecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				rec, err := c.HistoryRecord(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emitNotes(cmd, rec.Notes, outputPath)
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write notes to this file instead of stdout")
	return cmd
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete a saved lecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.DeleteHistory(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistorySearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find slides in saved lectures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				hits, err := c.SearchHistory(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SearchResponse{Query: args[0], Hits: hits})
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "No matches")
					return nil
				}
				rows := make([][]string, 0, len(hits))
				for _, hit := range hits {
					rows = append(rows, []string{
						fmt.Sprintf("%.3f", hit.Score),
						hit.Filename,
						hit.SlideKey,
						hit.Caption,
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Score", AlignEnd: true},
					{Header: "File", MaxWidth: 32},
					{Header: "Slide"},
					{Header: "Caption", MaxWidth: 60},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of hits")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
