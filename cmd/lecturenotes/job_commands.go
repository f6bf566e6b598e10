package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lecturenotes/internal/api"
	"lecturenotes/internal/client"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/results"
)

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newStatusCommand(ctx),
		newResultCommand(ctx),
		newJobsCommand(ctx),
		newCancelCommand(ctx),
		newDeleteCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var audioPath, transcriptPath, outputPath string
	var skip, wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <deck>",
		Short: "Upload a slide deck and recording and start a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.SubmitRequest{
				DeckPath:          strings.TrimSpace(args[0]),
				AudioPath:         strings.TrimSpace(audioPath),
				SkipTranscription: skip,
				UserEmail:         ctx.user(),
			}
			if !fileExists(req.DeckPath) {
				return fmt.Errorf("deck %q not found", req.DeckPath)
			}
			if transcriptPath != "" {
				data, err := os.ReadFile(transcriptPath)
				if err != nil {
					return fmt.Errorf("read transcript: %w", err)
				}
				req.Transcript = string(data)
				req.SkipTranscription = true
			}
			if req.AudioPath == "" && !req.SkipTranscription {
				return fmt.Errorf("--audio is required unless --skip-transcription or --transcript is set")
			}
			if req.AudioPath != "" && !fileExists(req.AudioPath) {
				return fmt.Errorf("audio %q not found", req.AudioPath)
			}

			return ctx.withClient(func(c *client.Client) error {
				id, err := c.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !wait {
					fmt.Fprintln(out, id)
					return nil
				}
				fmt.Fprintf(out, "Job %s submitted\n", id)
				final, err := c.WaitForCompletion(cmd.Context(), id, interval, func(p jobs.Progress) {
					fmt.Fprintln(out, progressLabel(p))
				})
				if err != nil {
					return err
				}
				if final.Progress == jobs.ProgressFailed {
					return fmt.Errorf("job %s failed: %s", id, final.Message)
				}
				notes, err := c.Result(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emitNotes(cmd, notes, outputPath)
			})
		},
	}
	cmd.Flags().StringVarP(&audioPath, "audio", "a", "", "Lecture recording")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Use this transcript file instead of transcribing")
	cmd.Flags().BoolVar(&skip, "skip-transcription", false, "Reuse the cached transcript")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job and print the notes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval with --wait")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write notes to this file with --wait")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				p, err := c.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, p)
				}
				fmt.Fprintln(cmd.OutOrStdout(), progressLabel(p))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var partial bool
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Print the notes of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				fetch := c.Result
				if partial {
					fetch = c.Partial
				}
				notes, err := fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emitNotes(cmd, notes, outputPath)
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write notes to this file instead of stdout")
	cmd.Flags().BoolVar(&partial, "partial", false, "Print the notes saved so far, whatever the job state")
	return cmd
}

func emitNotes(cmd *cobra.Command, notes results.Notes, outputPath string) error {
	if outputPath == "" {
		return writeJSON(cmd, notes)
	}
	if err := writeJSONFile(outputPath, notes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d slide notes to %s\n", len(notes), outputPath)
	return nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(c *client.Client) error {
				views, err := c.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.JobListResponse{Jobs: views})
				}
				printJobsTable(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printJobsTable(out io.Writer, views []api.JobView) {
	if len(views) == 0 {
		fmt.Fprintln(out, "No jobs")
		return
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		status := string(v.Status)
		if colorize {
			status = statusKindColor(jobStatusKind(v.Status)) + status + ansiReset
		}
		rows = append(rows, []string{
			v.ID,
			status,
			fmt.Sprintf("%d%%", max(v.Progress, 0)),
			v.Filename,
			v.Message,
			v.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			yesNo(v.Active),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "ID"},
		{Header: "Status"},
		{Header: "Progress", AlignEnd: true},
		{Header: "File", MaxWidth: 32},
		{Header: "Message", MaxWidth: 48},
		{Header: "Updated"},
		{Header: "Active"},
	}, rows))
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				if err := c.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", args[0])
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>...",
		Short: "Delete jobs and their stored notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					err := c.Delete(cmd.Context(), id)
					switch {
					case client.IsNotFound(err):
						fmt.Fprintf(out, "Job %s not found\n", id)
					case err != nil:
						return err
					default:
						fmt.Fprintf(out, "Job %s deleted\n", id)
					}
				}
				return nil
			})
		},
	}
}
