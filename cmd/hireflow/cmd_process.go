package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hireflow/internal/graph"
	"hireflow/internal/process"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Manage hiring process definitions",
}

var processCreateFlags struct {
	orgID     int64
	name      string
	desc      string
	defPath   string
	createdBy int64
}

var processCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft process, empty or from a YAML definition",
	RunE:  runProcessCreate,
}

var processActivateFlags struct {
	force bool
}

var processActivateCmd = &cobra.Command{
	Use:   "activate <process-id>",
	Short: "Activate a validated draft process",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessActivate,
}

var processArchiveFlags struct {
	reason string
}

var processArchiveCmd = &cobra.Command{
	Use:   "archive <process-id>",
	Short: "Archive a process with no candidates in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessArchive,
}

var processCloneFlags struct {
	name       string
	candidates bool
	viewers    bool
}

var processCloneCmd = &cobra.Command{
	Use:   "clone <process-id>",
	Short: "Clone a process into a fresh draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessClone,
}

var processDeleteCmd = &cobra.Command{
	Use:   "delete <process-id>",
	Short: "Delete a draft process",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessDelete,
}

var processValidateCmd = &cobra.Command{
	Use:   "validate <process-id>",
	Short: "Validate a process graph and report issues",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessValidate,
}

var processShowCmd = &cobra.Command{
	Use:   "show <process-id>",
	Short: "Show a process with its nodes and connections",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessShow,
}

func init() {
	f := processCreateCmd.Flags()
	f.Int64Var(&processCreateFlags.orgID, "org", 1, "Organization ID")
	f.StringVar(&processCreateFlags.name, "name", "", "Process name")
	f.StringVar(&processCreateFlags.desc, "description", "", "Process description")
	f.StringVarP(&processCreateFlags.defPath, "file", "f", "", "YAML process definition")
	f.Int64Var(&processCreateFlags.createdBy, "created-by", 0, "Creating user ID")

	processActivateCmd.Flags().BoolVar(&processActivateFlags.force, "force", false, "Activate despite validation issues")
	processArchiveCmd.Flags().StringVar(&processArchiveFlags.reason, "reason", "", "Archive reason")

	cf := processCloneCmd.Flags()
	cf.StringVar(&processCloneFlags.name, "name", "", "Name for the clone (required)")
	cf.BoolVar(&processCloneFlags.candidates, "candidates", false, "Carry candidates over as fresh assignments")
	cf.BoolVar(&processCloneFlags.viewers, "viewers", true, "Carry viewer access over")
	_ = processCloneCmd.MarkFlagRequired("name")

	processCmd.AddCommand(processCreateCmd)
	processCmd.AddCommand(processActivateCmd)
	processCmd.AddCommand(processArchiveCmd)
	processCmd.AddCommand(processCloneCmd)
	processCmd.AddCommand(processDeleteCmd)
	processCmd.AddCommand(processValidateCmd)
	processCmd.AddCommand(processShowCmd)
}

func parseProcessID(args []string) (int64, error) {
	ids, err := parseIDList(args[0])
	if err != nil || len(ids) != 1 {
		return 0, fmt.Errorf("invalid process id %q", args[0])
	}
	return ids[0], nil
}

func runProcessCreate(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	mgr := process.NewManager(st)

	var pid int64
	if processCreateFlags.defPath != "" {
		data, err := os.ReadFile(processCreateFlags.defPath)
		if err != nil {
			return fmt.Errorf("read definition: %w", err)
		}
		def, err := graph.LoadDef(data)
		if err != nil {
			return err
		}
		pid, err = mgr.CreateFromDef(def, processCreateFlags.orgID)
		if err != nil {
			return err
		}
	} else {
		if processCreateFlags.name == "" {
			return fmt.Errorf("--name or --file is required")
		}
		pid, err = mgr.Create(&graph.Process{
			OrgID:       processCreateFlags.orgID,
			Name:        processCreateFlags.name,
			Description: processCreateFlags.desc,
			CreatedBy:   processCreateFlags.createdBy,
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created draft process #%d\n", pid)
	return nil
}

func runProcessActivate(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := process.NewManager(st).Activate(pid, processActivateFlags.force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Process #%d is active\n", pid)
	return nil
}

func runProcessArchive(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := process.NewManager(st).Archive(pid, processArchiveFlags.reason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Process #%d archived\n", pid)
	return nil
}

func runProcessClone(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cloneID, err := process.NewManager(st).Clone(pid, processCloneFlags.name, processCloneFlags.candidates, processCloneFlags.viewers)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cloned process #%d into draft #%d\n", pid, cloneID)
	return nil
}

func runProcessDelete(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := process.NewManager(st).Delete(pid); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Process #%d deleted\n", pid)
	return nil
}

func runProcessValidate(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := process.NewManager(st).Validate(pid)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rep.IsValid {
		fmt.Fprintf(out, "Process #%d is valid\n", pid)
	} else {
		fmt.Fprintf(out, "Process #%d has %d issue(s):\n", pid, len(rep.Issues))
		for _, issue := range rep.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
	for _, w := range rep.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}

func runProcessShow(cmd *cobra.Command, args []string) error {
	pid, err := parseProcessID(args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := process.NewManager(st)
	p, err := mgr.Get(pid)
	if err != nil {
		return err
	}
	nodes, err := st.ListNodes(pid)
	if err != nil {
		return err
	}
	conns, err := st.ListConnections(pid)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Process: #%d %s\n", p.ID, p.Name)
	fmt.Fprintf(out, "Status:  %s (v%d)\n", p.Status, p.Version)
	if p.Description != "" {
		fmt.Fprintf(out, "About:   %s\n", p.Description)
	}
	if p.ArchiveReason != "" {
		fmt.Fprintf(out, "Reason:  %s\n", p.ArchiveReason)
	}
	titles := make(map[int64]string, len(nodes))
	fmt.Fprintf(out, "Nodes:   (%d)\n", len(nodes))
	for _, n := range nodes {
		titles[n.ID] = n.Title
		fmt.Fprintf(out, "  #%d [%s] %s\n", n.ID, n.Type, n.Title)
	}
	fmt.Fprintf(out, "Edges:   (%d)\n", len(conns))
	for _, c := range conns {
		cond := string(c.Kind)
		if c.Kind == graph.CondConditional {
			cond = fmt.Sprintf("score >= %g", c.Threshold)
		}
		if c.Default {
			cond += ", default"
		}
		fmt.Fprintf(out, "  %s -> %s (%s)\n", titles[c.SourceID], titles[c.TargetID], cond)
	}
	return nil
}
