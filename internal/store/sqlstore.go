package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hireflow/internal/graph"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nilIfEmpty converts an empty string to nil for nullable columns.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullFloatPtr converts a sql.NullFloat64 to a *float64.
func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// floatPtrArg converts a *float64 to a nullable query argument.
func floatPtrArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// dbConn is the subset of database/sql shared by *sql.DB and *sql.Tx,
// so the same query methods serve both direct and transactional use.
type dbConn interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB // nil when this instance wraps an open transaction
	q  dbConn
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .hireflow) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: concurrent callers (e.g. BulkAssign workers) queue at
	// the pool instead of hitting SQLITE_BUSY across separate connections.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db, q: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SqlStore) migrate() error {
	if _, err := s.q.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	err := s.q.QueryRow(`SELECT version FROM schema_version`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.q.Exec(`INSERT INTO schema_version(version) VALUES(?)`, schemaVersionV1); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersionV1:
		return fmt.Errorf("unsupported schema version %d (want %d)", version, schemaVersionV1)
	}
	return nil
}

// Tx runs fn inside one database transaction. Nested calls reuse the
// open transaction.
func (s *SqlStore) Tx(fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	inner := &SqlStore{q: tx}
	if err := fn(inner); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Process ---

func (s *SqlStore) CreateProcess(p *graph.Process) (int64, error) {
	if p == nil {
		return 0, errors.New("process is nil")
	}
	now := nowUTC()
	if p.Status == "" {
		p.Status = graph.ProcessDraft
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	if p.UpdatedAt == "" {
		p.UpdatedAt = now
	}
	settings, err := marshalSettings(p.Settings)
	if err != nil {
		return 0, err
	}
	res, err := s.q.Exec(
		`INSERT INTO processes(org_id, name, description, status, version, settings, created_by, created_at, updated_at, activated_at, archived_at, archive_reason)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrgID, p.Name, p.Description, string(p.Status), p.Version, settings, p.CreatedBy,
		p.CreatedAt, p.UpdatedAt, nilIfEmpty(p.ActivatedAt), nilIfEmpty(p.ArchivedAt), nilIfEmpty(p.ArchiveReason),
	)
	if err != nil {
		return 0, fmt.Errorf("insert process: %w", err)
	}
	return res.LastInsertId()
}

const processCols = `id, org_id, name, description, status, version, settings, created_by, created_at, updated_at, activated_at, archived_at, archive_reason`

func scanProcess(row interface{ Scan(...any) error }) (*graph.Process, error) {
	var p graph.Process
	var status string
	var settings, activatedAt, archivedAt, reason sql.NullString
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &status, &p.Version, &settings,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &activatedAt, &archivedAt, &reason)
	if err != nil {
		return nil, err
	}
	p.Status = graph.ProcessStatus(status)
	p.ActivatedAt = nullStr(activatedAt)
	p.ArchivedAt = nullStr(archivedAt)
	p.ArchiveReason = nullStr(reason)
	if settings.Valid && settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &p.Settings); err != nil {
			return nil, fmt.Errorf("decode process settings: %w", err)
		}
	}
	return &p, nil
}

func marshalSettings(settings map[string]string) (any, error) {
	if len(settings) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode process settings: %w", err)
	}
	return string(data), nil
}

func (s *SqlStore) GetProcess(id int64) (*graph.Process, error) {
	p, err := scanProcess(s.q.QueryRow(`SELECT `+processCols+` FROM processes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}
	return p, nil
}

func (s *SqlStore) ListProcesses(orgID int64) ([]*graph.Process, error) {
	rows, err := s.q.Query(`SELECT `+processCols+` FROM processes WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()
	var out []*graph.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SqlStore) UpdateProcess(p *graph.Process) error {
	if p == nil {
		return errors.New("process is nil")
	}
	p.UpdatedAt = nowUTC()
	settings, err := marshalSettings(p.Settings)
	if err != nil {
		return err
	}
	res, err := s.q.Exec(
		`UPDATE processes SET org_id = ?, name = ?, description = ?, status = ?, version = ?, settings = ?,
		 updated_at = ?, activated_at = ?, archived_at = ?, archive_reason = ? WHERE id = ?`,
		p.OrgID, p.Name, p.Description, string(p.Status), p.Version, settings,
		p.UpdatedAt, nilIfEmpty(p.ActivatedAt), nilIfEmpty(p.ArchivedAt), nilIfEmpty(p.ArchiveReason), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update process: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.New("process not found")
	}
	return nil
}

// DeleteProcess removes a process and everything it owns: viewers,
// nodes, connections, candidate processes, and their executions.
// Lifecycle rules (draft-only) are enforced by the process manager.
func (s *SqlStore) DeleteProcess(id int64) error {
	return s.Tx(func(st Store) error {
		q := st.(*SqlStore).q
		if _, err := q.Exec(
			`DELETE FROM node_executions WHERE candidate_process_id IN
				(SELECT id FROM candidate_processes WHERE process_id = ?)`, id); err != nil {
			return fmt.Errorf("delete executions: %w", err)
		}
		for _, stmt := range []string{
			`DELETE FROM candidate_processes WHERE process_id = ?`,
			`DELETE FROM connections WHERE process_id = ?`,
			`DELETE FROM nodes WHERE process_id = ?`,
			`DELETE FROM process_viewers WHERE process_id = ?`,
			`DELETE FROM processes WHERE id = ?`,
		} {
			if _, err := q.Exec(stmt, id); err != nil {
				return fmt.Errorf("delete process: %w", err)
			}
		}
		return nil
	})
}

// --- Viewers ---

func (s *SqlStore) AddViewer(processID, userID int64) error {
	_, err := s.q.Exec(
		`INSERT OR IGNORE INTO process_viewers(process_id, user_id) VALUES(?, ?)`,
		processID, userID,
	)
	if err != nil {
		return fmt.Errorf("add viewer: %w", err)
	}
	return nil
}

func (s *SqlStore) ListViewers(processID int64) ([]int64, error) {
	rows, err := s.q.Query(`SELECT user_id FROM process_viewers WHERE process_id = ? ORDER BY user_id`, processID)
	if err != nil {
		return nil, fmt.Errorf("list viewers: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Nodes ---

func (s *SqlStore) CreateNode(n *graph.Node) (int64, error) {
	if n == nil {
		return 0, errors.New("node is nil")
	}
	config, err := json.Marshal(n.Config)
	if err != nil {
		return 0, fmt.Errorf("encode node config: %w", err)
	}
	if n.AddedInVersion == 0 {
		n.AddedInVersion = 1
	}
	res, err := s.q.Exec(
		`INSERT INTO nodes(process_id, type, title, sequence, required, config, added_in_version)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		n.ProcessID, string(n.Type), n.Title, n.Sequence, n.Required, string(config), n.AddedInVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	return res.LastInsertId()
}

const nodeCols = `id, process_id, type, title, sequence, required, config, added_in_version`

func scanNode(row interface{ Scan(...any) error }) (*graph.Node, error) {
	var n graph.Node
	var typ string
	var config sql.NullString
	if err := row.Scan(&n.ID, &n.ProcessID, &typ, &n.Title, &n.Sequence, &n.Required, &config, &n.AddedInVersion); err != nil {
		return nil, err
	}
	n.Type = graph.NodeType(typ)
	if config.Valid && config.String != "" {
		if err := json.Unmarshal([]byte(config.String), &n.Config); err != nil {
			return nil, fmt.Errorf("decode node config: %w", err)
		}
	}
	return &n, nil
}

func (s *SqlStore) GetNode(id int64) (*graph.Node, error) {
	n, err := scanNode(s.q.QueryRow(`SELECT `+nodeCols+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

func (s *SqlStore) ListNodes(processID int64) ([]*graph.Node, error) {
	rows, err := s.q.Query(`SELECT `+nodeCols+` FROM nodes WHERE process_id = ? ORDER BY sequence, id`, processID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	var out []*graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SqlStore) DeleteNode(id int64) error {
	if _, err := s.q.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return nil
}

// --- Connections ---

func (s *SqlStore) CreateConnection(c *graph.Connection) (int64, error) {
	if c == nil {
		return 0, errors.New("connection is nil")
	}
	if c.AddedInVersion == 0 {
		c.AddedInVersion = 1
	}
	res, err := s.q.Exec(
		`INSERT INTO connections(process_id, source_id, target_id, kind, threshold, is_default, label, added_in_version)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProcessID, c.SourceID, c.TargetID, string(c.Kind), c.Threshold, c.Default, c.Label, c.AddedInVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert connection: %w", err)
	}
	return res.LastInsertId()
}

func (s *SqlStore) ListConnections(processID int64) ([]*graph.Connection, error) {
	rows, err := s.q.Query(
		`SELECT id, process_id, source_id, target_id, kind, threshold, is_default, label, added_in_version
		 FROM connections WHERE process_id = ? ORDER BY id`, processID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()
	var out []*graph.Connection
	for rows.Next() {
		var c graph.Connection
		var kind string
		if err := rows.Scan(&c.ID, &c.ProcessID, &c.SourceID, &c.TargetID, &kind, &c.Threshold, &c.Default, &c.Label, &c.AddedInVersion); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		c.Kind = graph.ConditionKind(kind)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SqlStore) DeleteConnectionsByNode(nodeID int64) error {
	if _, err := s.q.Exec(`DELETE FROM connections WHERE source_id = ? OR target_id = ?`, nodeID, nodeID); err != nil {
		return fmt.Errorf("delete connections: %w", err)
	}
	return nil
}

func (s *SqlStore) CountExecutionsByNode(nodeID int64) (int, error) {
	var n int
	if err := s.q.QueryRow(`SELECT COUNT(*) FROM node_executions WHERE node_id = ?`, nodeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

func (s *SqlStore) DeleteExecutionsByNode(nodeID int64) error {
	if _, err := s.q.Exec(`DELETE FROM node_executions WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("delete executions: %w", err)
	}
	return nil
}
