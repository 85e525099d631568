// Package store persists Monte Carlo runs and live angle readings in SQLite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
)

// Store wraps the SQLite database.
type Store struct {
	db   *sqlx.DB
	path string
}

const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{db: db, path: path}
	if err := s.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the file the store was opened from.
func (s *Store) Path() string { return s.path }

// runRow is the mc_runs row layout.
type runRow struct {
	RunID              string  `db:"run_id"`
	StudyID            string  `db:"study_id"`
	RunIndex           int     `db:"run_index"`
	ConfigName         string  `db:"config_name"`
	NumSensors         int     `db:"num_sensors"`
	PolePairs          int     `db:"pole_pairs"`
	NumFailures        int     `db:"num_failures"`
	FailedSensorsJSON  string  `db:"failed_sensors_json"`
	ParametersJSON     string  `db:"parameters_json"`
	Degenerate         int     `db:"degenerate"`
	Underdetermined    int     `db:"underdetermined"`
	ErrorMean          float64 `db:"error_mean"`
	ErrorStd           float64 `db:"error_std"`
	ErrorMax           float64 `db:"error_max"`
	ErrorP99           float64 `db:"error_p99"`
	ResolutionBitsMean float64 `db:"resolution_bits_mean"`
	ResolutionBitsMax  float64 `db:"resolution_bits_max"`
	ResolutionBitsP99  float64 `db:"resolution_bits_p99"`
	CreatedUnixNanos   int64   `db:"created_unix_nanos"`
}

func newRunRow(studyID string, r analysis.RunResult, now time.Time) (runRow, error) {
	failed := r.FailedSensors
	if failed == nil {
		failed = []int{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return runRow{}, err
	}
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return runRow{}, err
	}
	return runRow{
		RunID:              r.ID,
		StudyID:            studyID,
		RunIndex:           r.RunIndex,
		ConfigName:         r.ConfigName,
		NumSensors:         r.Sensors,
		PolePairs:          r.PolePairs,
		NumFailures:        r.Failures,
		FailedSensorsJSON:  string(failedJSON),
		ParametersJSON:     string(params),
		Degenerate:         r.Degenerate,
		Underdetermined:    r.Underdetermined,
		ErrorMean:          r.Stats.MeanError,
		ErrorStd:           r.Stats.StdError,
		ErrorMax:           r.Stats.MaxAbsError,
		ErrorP99:           r.Stats.P99AbsError,
		ResolutionBitsMean: r.Stats.MeanResolutionBits,
		ResolutionBitsMax:  r.Stats.ResolutionBitsMax,
		ResolutionBitsP99:  r.Stats.ResolutionBitsP99,
		CreatedUnixNanos:   now.UnixNano(),
	}, nil
}

func (row runRow) result() (analysis.RunResult, error) {
	var failed []int
	if err := json.Unmarshal([]byte(row.FailedSensorsJSON), &failed); err != nil {
		return analysis.RunResult{}, fmt.Errorf("run %s failed_sensors: %w", row.RunID, err)
	}
	var params signalsim.Model
	if err := json.Unmarshal([]byte(row.ParametersJSON), &params); err != nil {
		return analysis.RunResult{}, fmt.Errorf("run %s parameters: %w", row.RunID, err)
	}
	return analysis.RunResult{
		ID:              row.RunID,
		RunIndex:        row.RunIndex,
		ConfigName:      row.ConfigName,
		Sensors:         row.NumSensors,
		PolePairs:       row.PolePairs,
		Failures:        row.NumFailures,
		FailedSensors:   failed,
		Parameters:      params,
		Degenerate:      row.Degenerate,
		Underdetermined: row.Underdetermined,
		Stats: analysis.Stats{
			MeanError:          row.ErrorMean,
			StdError:           row.ErrorStd,
			MaxAbsError:        row.ErrorMax,
			P99AbsError:        row.ErrorP99,
			MeanResolutionBits: row.ResolutionBitsMean,
			ResolutionBitsMax:  row.ResolutionBitsMax,
			ResolutionBitsP99:  row.ResolutionBitsP99,
		},
	}, nil
}

const insertRunSQL = `INSERT INTO mc_runs (
	run_id, study_id, run_index, config_name, num_sensors, pole_pairs, num_failures,
	failed_sensors_json, parameters_json, degenerate, underdetermined,
	error_mean, error_std, error_max, error_p99,
	resolution_bits_mean, resolution_bits_max, resolution_bits_p99, created_unix_nanos
) VALUES (
	:run_id, :study_id, :run_index, :config_name, :num_sensors, :pole_pairs, :num_failures,
	:failed_sensors_json, :parameters_json, :degenerate, :underdetermined,
	:error_mean, :error_std, :error_max, :error_p99,
	:resolution_bits_mean, :resolution_bits_max, :resolution_bits_p99, :created_unix_nanos
)`

// InsertRuns stores runs under studyID in one transaction.
func (s *Store) InsertRuns(ctx context.Context, studyID string, runs []analysis.RunResult) error {
	if studyID == "" {
		return errors.New("study id is required")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertRunSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range runs {
		row, err := newRunRow(studyID, r, now)
		if err != nil {
			return fmt.Errorf("encode run %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert run %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Runs returns the stored runs of one array configuration, ordered by
// failure count then run index. An empty configName returns every run.
// Stats carries only the reported metrics; sample counts are not stored.
func (s *Store) Runs(ctx context.Context, configName string) ([]analysis.RunResult, error) {
	var rows []runRow
	q := `SELECT * FROM mc_runs`
	args := []any{}
	if configName != "" {
		q += ` WHERE config_name = ?`
		args = append(args, configName)
	}
	q += ` ORDER BY config_name, num_failures, run_index`
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	out := make([]analysis.RunResult, 0, len(rows))
	for _, row := range rows {
		r, err := row.result()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Reading is one live reconstruction logged by the monitor. Angle fields are
// nil when the reconstruction failed; Error then holds the reason.
type Reading struct {
	ID                   int64    `db:"reading_id" json:"id"`
	Source               string   `db:"source" json:"source"`
	RecordedUnixNanos    int64    `db:"recorded_unix_nanos" json:"recorded_unix_nanos"`
	WorkingSensors       int      `db:"working_sensors" json:"working_sensors"`
	AngleDeg             *float64 `db:"angle_deg" json:"angle_deg,omitempty"`
	Sector               *int     `db:"sector" json:"sector,omitempty"`
	FundamentalAmplitude *float64 `db:"fundamental_amplitude" json:"fundamental_amplitude,omitempty"`
	HarmonicAmplitude    *float64 `db:"harmonic_amplitude" json:"harmonic_amplitude,omitempty"`
	Error                string   `db:"error" json:"error,omitempty"`
	// Underdetermined marks an angle from a rank-deficient fit.
	Underdetermined bool `db:"underdetermined" json:"underdetermined,omitempty"`
}

// RecordedAt returns the reading time.
func (r Reading) RecordedAt() time.Time { return time.Unix(0, r.RecordedUnixNanos) }

// NewReading builds a Reading from the outcome of encoder.Reconstruct.
func NewReading(source string, at time.Time, working int, res encoder.Result, err error) Reading {
	rd := Reading{
		Source:            source,
		RecordedUnixNanos: at.UnixNano(),
		WorkingSensors:    working,
	}
	if err != nil {
		rd.Error = err.Error()
		return rd
	}
	angle, sector := res.AngleDeg, res.Sector
	fund, harm := res.Fundamental.Amplitude(), res.Harmonic.Amplitude()
	rd.AngleDeg, rd.Sector = &angle, &sector
	rd.FundamentalAmplitude, rd.HarmonicAmplitude = &fund, &harm
	rd.Underdetermined = res.Underdetermined
	return rd
}

// RecordReading appends a reading and returns its id.
func (s *Store) RecordReading(ctx context.Context, r Reading) (int64, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO angle_readings (
		source, recorded_unix_nanos, working_sensors, angle_deg, sector,
		fundamental_amplitude, harmonic_amplitude, error, underdetermined
	) VALUES (
		:source, :recorded_unix_nanos, :working_sensors, :angle_deg, :sector,
		:fundamental_amplitude, :harmonic_amplitude, :error, :underdetermined
	)`, r)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	return res.LastInsertId()
}

// RecentReadings returns up to limit readings, newest first.
func (s *Store) RecentReadings(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	var out []Reading
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM angle_readings ORDER BY recorded_unix_nanos DESC, reading_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	return out, nil
}
