// Package runstore persists segmentation runs, their per-vertebra slice
// ranges and their diagnostics in sqlite.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one recorded ComputeSegments invocation.
type Run struct {
	RunID         string  `json:"run_id"`
	CreatedAtNs   int64   `json:"created_at_ns"`
	ChordPath     string  `json:"chord_path"`
	ChordName     string  `json:"chord_name,omitempty"`
	Threshold     float64 `json:"threshold"`
	Workers       int     `json:"workers"`
	GridNX        int     `json:"grid_nx"`
	GridNY        int     `json:"grid_ny"`
	GridNZ        int     `json:"grid_nz"`
	VertebraCount int     `json:"vertebra_count"`
	DurationNs    int64   `json:"duration_ns"`
}

// Segment is one vertebra's recorded slice range.
type Segment struct {
	Vertebra   string `json:"vertebra"`
	MinSlice   int    `json:"min_slice"`
	MaxSlice   int    `json:"max_slice"`
	HasOverlap bool   `json:"has_overlap"`
}

// Diagnostic is one recorded per-vertebra condition.
type Diagnostic struct {
	Vertebra  string `json:"vertebra"`
	Condition string `json:"condition"`
}

// Store provides persistence for segmentation runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRun records a run with its segments and diagnostics in one
// transaction. If run.RunID is empty, a new UUID is generated.
func (s *Store) InsertRun(run *Run, segments []Segment, diagnostics []Diagnostic) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = time.Now().UnixNano()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, created_at_ns, chord_path, chord_name, threshold, workers,
			grid_nx, grid_ny, grid_nz, vertebra_count, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAtNs, run.ChordPath, nullString(run.ChordName),
		run.Threshold, run.Workers,
		run.GridNX, run.GridNY, run.GridNZ, run.VertebraCount, run.DurationNs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, seg := range segments {
		_, err = tx.Exec(`
			INSERT INTO run_segments (run_id, vertebra, min_slice, max_slice, has_overlap)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, seg.Vertebra, seg.MinSlice, seg.MaxSlice, seg.HasOverlap,
		)
		if err != nil {
			return fmt.Errorf("insert run segment %s: %w", seg.Vertebra, err)
		}
	}

	for _, d := range diagnostics {
		_, err = tx.Exec(`
			INSERT INTO run_diagnostics (run_id, vertebra, condition)
			VALUES (?, ?, ?)`,
			run.RunID, d.Vertebra, d.Condition,
		)
		if err != nil {
			return fmt.Errorf("insert run diagnostic %s: %w", d.Vertebra, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	var run Run
	var chordName sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, created_at_ns, chord_path, chord_name, threshold, workers,
		       grid_nx, grid_ny, grid_nz, vertebra_count, duration_ns
		FROM runs WHERE run_id = ?`, runID).Scan(
		&run.RunID, &run.CreatedAtNs, &run.ChordPath, &chordName,
		&run.Threshold, &run.Workers,
		&run.GridNX, &run.GridNY, &run.GridNZ, &run.VertebraCount, &run.DurationNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if chordName.Valid {
		run.ChordName = chordName.String
	}
	return &run, nil
}

// GetSegments retrieves a run's recorded slice ranges, ordered by vertebra.
func (s *Store) GetSegments(runID string) ([]Segment, error) {
	rows, err := s.db.Query(`
		SELECT vertebra, min_slice, max_slice, has_overlap
		FROM run_segments WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Vertebra, &seg.MinSlice, &seg.MaxSlice, &seg.HasOverlap); err != nil {
			return nil, fmt.Errorf("scan run segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run segments rows: %w", err)
	}
	return segments, nil
}

// GetDiagnostics retrieves a run's recorded per-vertebra conditions.
func (s *Store) GetDiagnostics(runID string) ([]Diagnostic, error) {
	rows, err := s.db.Query(`
		SELECT vertebra, condition
		FROM run_diagnostics WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run diagnostics: %w", err)
	}
	defer rows.Close()

	var diagnostics []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Vertebra, &d.Condition); err != nil {
			return nil, fmt.Errorf("scan run diagnostic: %w", err)
		}
		diagnostics = append(diagnostics, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run diagnostics rows: %w", err)
	}
	return diagnostics, nil
}

// ListRuns retrieves all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_at_ns, chord_path, chord_name, threshold, workers,
		       grid_nx, grid_ny, grid_nz, vertebra_count, duration_ns
		FROM runs ORDER BY created_at_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var chordName sql.NullString
		err := rows.Scan(
			&run.RunID, &run.CreatedAtNs, &run.ChordPath, &chordName,
			&run.Threshold, &run.Workers,
			&run.GridNX, &run.GridNY, &run.GridNZ, &run.VertebraCount, &run.DurationNs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if chordName.Valid {
			run.ChordName = chordName.String
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
