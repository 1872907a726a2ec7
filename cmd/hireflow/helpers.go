package main

import (
	"fmt"
	"strconv"
	"strings"

	"hireflow/internal/collab"
	"hireflow/internal/engine"
	"hireflow/internal/store"
)

func defaultDBPath() string {
	return store.DefaultDBPath
}

// openStore opens the configured SQLite store. Callers defer Close.
func openStore() (*store.SqlStore, error) {
	st, err := store.Open(rootFlags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// newEngine wires an engine with the default collaborator set: no-op
// scheduling and submissions, log-backed notifications.
func newEngine(st store.Store) *engine.Engine {
	return engine.New(st, collab.Collaborators{})
}

// scorePtr turns a flag value into an optional score. Negative means
// the flag was not set.
func scorePtr(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

// formatScore renders an optional score for display.
func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

// parseIDList splits a comma separated id list.
func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids given")
	}
	return ids, nil
}
