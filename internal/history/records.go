package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Job kinds.
const (
	KindFile   = "file"
	KindStream = "stream"
)

// Job statuses.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobCopied    = "copied"
	JobRejected  = "rejected"
	JobFailed    = "failed"
)

// Chunk statuses.
const (
	ChunkEmitted = "emitted"
	ChunkDropped = "dropped"
	ChunkFailed  = "failed"
)

// JobRecord is one file job or stream session.
type JobRecord struct {
	ID            string
	Kind          string
	Input         string
	Output        string
	Status        string
	StartedAt     time.Time
	FinishedAt    time.Time
	MutedSeconds  float64
	BlurRegions   int
	ChunksEmitted int
	ChunksDropped int
	Error         string
}

// Elapsed returns the job's wall time, or zero while running.
func (r JobRecord) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ChunkRecord is the outcome of one stream chunk.
type ChunkRecord struct {
	JobID        string
	ChunkID      int64
	StartTS      float64
	Duration     float64
	Status       string
	Output       string
	MutedSeconds float64
	BlurRegions  int
	Error        string
}

// RecordJob inserts or replaces a job row.
func (s *Store) RecordJob(ctx context.Context, rec JobRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record job: id required")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO jobs (
            id, kind, input_path, output_path, status, started_at, finished_at,
            muted_seconds, blur_regions, chunks_emitted, chunks_dropped, error_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            output_path = excluded.output_path,
            status = excluded.status,
            finished_at = excluded.finished_at,
            muted_seconds = excluded.muted_seconds,
            blur_regions = excluded.blur_regions,
            chunks_emitted = excluded.chunks_emitted,
            chunks_dropped = excluded.chunks_dropped,
            error_message = excluded.error_message`,
		rec.ID,
		rec.Kind,
		rec.Input,
		nullableString(rec.Output),
		rec.Status,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		rec.MutedSeconds,
		rec.BlurRegions,
		rec.ChunksEmitted,
		rec.ChunksDropped,
		nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// RecordChunk inserts or replaces a chunk row. The parent job must exist.
func (s *Store) RecordChunk(ctx context.Context, rec ChunkRecord) error {
	err := s.exec(ctx,
		`INSERT OR REPLACE INTO chunks (
            job_id, chunk_id, start_ts, duration, status, output_path,
            muted_seconds, blur_regions, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.ChunkID,
		rec.StartTS,
		rec.Duration,
		rec.Status,
		nullableString(rec.Output),
		rec.MutedSeconds,
		rec.BlurRegions,
		nullableString(rec.Error),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record chunk: %w", err)
	}
	return nil
}

// RecentJobs returns up to limit jobs, newest first.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, input_path, output_path, status, started_at, finished_at,
                muted_seconds, blur_regions, chunks_emitted, chunks_dropped, error_message
         FROM jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			rec               JobRecord
			output, errMsg    sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Input, &output, &rec.Status, &started, &finished,
			&rec.MutedSeconds, &rec.BlurRegions, &rec.ChunksEmitted, &rec.ChunksDropped, &errMsg); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Output = output.String
		rec.Error = errMsg.String
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Chunks returns the chunk rows of a job ordered by chunk id.
func (s *Store) Chunks(ctx context.Context, jobID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, chunk_id, start_ts, duration, status, output_path,
                muted_seconds, blur_regions, error_message
         FROM chunks WHERE job_id = ? ORDER BY chunk_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var (
			rec            ChunkRecord
			output, errMsg sql.NullString
		)
		if err := rows.Scan(&rec.JobID, &rec.ChunkID, &rec.StartTS, &rec.Duration, &rec.Status, &output,
			&rec.MutedSeconds, &rec.BlurRegions, &errMsg); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		rec.Output = output.String
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
