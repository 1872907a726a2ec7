package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignFlags struct {
	candidates string
	processID  int64
	recruiter  int64
	start      bool
}

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign one or more candidates to an active process",
	RunE:  runAssign,
}

func init() {
	f := assignCmd.Flags()
	f.StringVar(&assignFlags.candidates, "candidates", "", "Comma separated candidate IDs (required)")
	f.Int64Var(&assignFlags.processID, "process", 0, "Process ID (required)")
	f.Int64Var(&assignFlags.recruiter, "recruiter", 0, "Assigning recruiter ID (required)")
	f.BoolVar(&assignFlags.start, "start", false, "Start each run immediately")

	_ = assignCmd.MarkFlagRequired("candidates")
	_ = assignCmd.MarkFlagRequired("process")
	_ = assignCmd.MarkFlagRequired("recruiter")
}

func runAssign(cmd *cobra.Command, _ []string) error {
	ids, err := parseIDList(assignFlags.candidates)
	if err != nil {
		return fmt.Errorf("--candidates: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	eng := newEngine(st)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(ids) == 1 {
		run, err := eng.Assign(ctx, ids[0], assignFlags.processID, assignFlags.recruiter, assignFlags.start)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Candidate #%d assigned: run #%d (%s)\n", run.CandidateID, run.ID, run.Status)
		return nil
	}

	outcomes := eng.BulkAssign(ctx, ids, assignFlags.processID, assignFlags.recruiter, assignFlags.start)
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(out, "Candidate #%d: %v\n", o.CandidateID, o.Err)
			continue
		}
		fmt.Fprintf(out, "Candidate #%d assigned: run #%d (%s)\n", o.CandidateID, o.Run.ID, o.Run.Status)
	}
	fmt.Fprintf(out, "Assigned %d/%d candidates\n", len(outcomes)-failed, len(outcomes))
	return nil
}
