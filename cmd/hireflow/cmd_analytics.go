package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hireflow/internal/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics <process-id>",
	Short: "Show the funnel report for a process",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalytics,
}

var workloadCmd = &cobra.Command{
	Use:   "workload <recruiter-id>",
	Short: "Show a recruiter's open workload",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkload,
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	pid, err := parseArgID(args, "process")
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := analytics.New(st).ProcessReport(pid)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Process:    #%d\n", rep.ProcessID)
	fmt.Fprintf(out, "Candidates: %d total, %d completed (%.0f%%)\n",
		rep.TotalCandidates, rep.CompletedCandidates, rep.CompletionRate*100)
	bottleneck := make(map[int64]bool, len(rep.BottleneckNodes))
	for _, id := range rep.BottleneckNodes {
		bottleneck[id] = true
	}
	for _, s := range rep.NodeStats {
		mark := ""
		if bottleneck[s.NodeID] {
			mark = "  <- bottleneck"
		}
		fmt.Fprintf(out, "  #%-4d %-20s entered=%-4d completed=%-4d avg_score=%-6s avg_time=%s%s\n",
			s.NodeID, s.Title, s.EnteredCount, s.CompletedCount, formatScore(s.AvgScore), s.AvgTimeInNode, mark)
	}
	return nil
}

func runWorkload(cmd *cobra.Command, args []string) error {
	rid, err := parseArgID(args, "recruiter")
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := analytics.New(st).RecruiterWorkload(rid)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recruiter: #%d\n", w.RecruiterID)
	fmt.Fprintf(out, "Active:    %d candidates\n", w.ActiveCandidates)
	fmt.Fprintf(out, "Pending:   %d executions\n", w.PendingExecutions)
	fmt.Fprintf(out, "Overdue:   %d executions\n", w.OverdueExecutions)
	return nil
}
