package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hireflow/internal/graph"
	"hireflow/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start <run-id>",
	Short: "Start a not yet started candidate run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var submitFlags struct {
	payloadPath string
}

var submitCmd = &cobra.Command{
	Use:   "submit <execution-id>",
	Short: "Attach a task submission to an open execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var completeFlags struct {
	result   string
	score    float64
	feedback string
	data     string
}

var completeCmd = &cobra.Command{
	Use:   "complete <execution-id>",
	Short: "Record a result on an execution and advance the run",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

var withdrawFlags struct {
	reason string
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <run-id>",
	Short: "Withdraw a candidate from a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runWithdraw,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <run-id>",
	Short: "Show the ordered event history of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFlags.payloadPath, "file", "f", "", "Submission payload file (required)")
	_ = submitCmd.MarkFlagRequired("file")

	f := completeCmd.Flags()
	f.StringVar(&completeFlags.result, "result", "", "Result: pass or fail (required)")
	f.Float64Var(&completeFlags.score, "score", -1, "Score (0-100)")
	f.StringVar(&completeFlags.feedback, "feedback", "", "Reviewer feedback")
	f.StringVar(&completeFlags.data, "data", "", "Opaque execution data (JSON)")
	_ = completeCmd.MarkFlagRequired("result")

	withdrawCmd.Flags().StringVar(&withdrawFlags.reason, "reason", "", "Withdrawal reason")
}

func parseArgID(args []string, what string) (int64, error) {
	ids, err := parseIDList(args[0])
	if err != nil || len(ids) != 1 {
		return 0, fmt.Errorf("invalid %s id %q", what, args[0])
	}
	return ids[0], nil
}

func runStart(cmd *cobra.Command, args []string) error {
	runID, err := parseArgID(args, "run")
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := newEngine(st).Start(cmd.Context(), runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run #%d started at node #%d\n", run.ID, run.CurrentNodeID)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	execID, err := parseArgID(args, "execution")
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(submitFlags.payloadPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ex, err := newEngine(st).Submit(cmd.Context(), execID, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submission stored for execution #%d (ref %s), ready for review\n", ex.ID, ex.ExternalRef)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	execID, err := parseArgID(args, "execution")
	if err != nil {
		return err
	}
	result := graph.Result(completeFlags.result)
	if result != graph.ResultPass && result != graph.ResultFail {
		return fmt.Errorf("--result must be pass or fail, got %q", completeFlags.result)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := newEngine(st).CompleteNode(cmd.Context(), execID, result, scorePtr(completeFlags.score), completeFlags.feedback, completeFlags.data)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case run.Status.IsTerminal():
		fmt.Fprintf(out, "Run #%d finished: %s", run.ID, run.Status)
		if run.FinalResult != "" {
			fmt.Fprintf(out, " (%s)", run.FinalResult)
		}
		if run.OverallScore != nil {
			fmt.Fprintf(out, ", overall score %s", formatScore(run.OverallScore))
		}
		fmt.Fprintln(out)
	default:
		fmt.Fprintf(out, "Run #%d advanced to node #%d\n", run.ID, run.CurrentNodeID)
	}
	return nil
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	runID, err := parseArgID(args, "run")
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := newEngine(st).UpdateStatus(cmd.Context(), runID, store.RunWithdrawn, "", nil, withdrawFlags.reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run #%d withdrawn\n", run.ID)
	return nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	runID, err := parseArgID(args, "run")
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := newEngine(st).Timeline(runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-15s", ev.At, ev.Kind)
		if ev.NodeTitle != "" {
			fmt.Fprintf(out, " %s", ev.NodeTitle)
		}
		if ev.Result != "" {
			fmt.Fprintf(out, " [%s]", ev.Result)
		}
		if ev.Score != nil {
			fmt.Fprintf(out, " score=%s", formatScore(ev.Score))
		}
		if ev.Detail != "" {
			fmt.Fprintf(out, " %s", ev.Detail)
		}
		fmt.Fprintln(out)
	}
	return nil
}
