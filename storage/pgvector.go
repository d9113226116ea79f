package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"videoJudge/config"
	"videoJudge/core"
)

// PgVectorStore persists embeddings in Postgres with the pgvector
// extension. Upserts replace a video's rows inside one transaction.
type PgVectorStore struct {
	conn *pgx.Conn
	dim  int
}

func newPgVectorStore(cfg *config.Config) (*PgVectorStore, error) {
	dbURL := cfg.PostgresURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("no postgres URL configured")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{conn: conn, dim: cfg.EmbeddingDim}
	if err := s.ensureTables(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	frameTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS video_frames (
			video_id  TEXT NOT NULL,
			frame_id  TEXT NOT NULL,
			ts        DOUBLE PRECISION NOT NULL,
			metadata  JSONB,
			embedding vector(%d),
			PRIMARY KEY (video_id, frame_id)
		)`, s.dim)
	if _, err := s.conn.Exec(ctx, frameTable); err != nil {
		return fmt.Errorf("create video_frames: %w", err)
	}

	segmentTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS video_segments (
			video_id   TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time   DOUBLE PRECISION NOT NULL,
			text       TEXT,
			metadata   JSONB,
			embedding  vector(%d),
			PRIMARY KEY (video_id, segment_id)
		)`, s.dim)
	if _, err := s.conn.Exec(ctx, segmentTable); err != nil {
		return fmt.Errorf("create video_segments: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_video_frames_video_id ON video_frames(video_id);",
		"CREATE INDEX IF NOT EXISTS idx_video_segments_video_id ON video_segments(video_id);",
	}
	for _, stmt := range indexes {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) UpsertFrameEmbeddings(videoID string, embeddings [][]float32, timestamps []float64, metadata []map[string]string) error {
	if err := validateFrameUpsert(embeddings, timestamps, metadata); err != nil {
		return err
	}
	unlock := lockVideo(videoID)
	defer unlock()

	ctx := context.Background()
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM video_frames WHERE video_id = $1", videoID); err != nil {
		return fmt.Errorf("clear frames for %s: %w", videoID, err)
	}
	for i := range embeddings {
		meta, err := metadataJSON(metadata, i)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO video_frames (video_id, frame_id, ts, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			videoID, fmt.Sprintf("%s_frame_%d", videoID, i), timestamps[i], meta, pgvector.NewVector(embeddings[i]))
		if err != nil {
			return fmt.Errorf("insert frame %d for %s: %w", i, videoID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PgVectorStore) UpsertSegmentEmbeddings(videoID string, embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error {
	if err := validateSegmentUpsert(embeddings, segments, metadata); err != nil {
		return err
	}
	unlock := lockVideo(videoID)
	defer unlock()

	ctx := context.Background()
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM video_segments WHERE video_id = $1", videoID); err != nil {
		return fmt.Errorf("clear segments for %s: %w", videoID, err)
	}
	for i := range embeddings {
		meta, err := metadataJSON(metadata, i)
		if err != nil {
			return err
		}
		seg := segments[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO video_segments (video_id, segment_id, start_time, end_time, text, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			videoID, fmt.Sprintf("%s_segment_%d", videoID, i), seg.Start, seg.End, seg.Text, meta, pgvector.NewVector(embeddings[i]))
		if err != nil {
			return fmt.Errorf("insert segment %d for %s: %w", i, videoID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PgVectorStore) SearchFrames(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	if k <= 0 {
		k = 5
	}
	vec := pgvector.NewVector(embedding)
	ctx := context.Background()

	rows, err := s.conn.Query(ctx, `
		SELECT frame_id, ts, metadata, embedding <=> $1 AS distance
		FROM video_frames
		WHERE ($2 = '' OR video_id = $2)
		ORDER BY embedding <=> $1
		LIMIT $3`, vec, videoID, k)
	if err != nil {
		return nil, fmt.Errorf("search frames: %w", err)
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		var meta []byte
		if err := rows.Scan(&h.ID, &h.TimestampSec, &meta, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan frame hit: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, fmt.Errorf("decode frame metadata: %w", err)
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) SearchSegments(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	if k <= 0 {
		k = 5
	}
	vec := pgvector.NewVector(embedding)
	ctx := context.Background()

	rows, err := s.conn.Query(ctx, `
		SELECT segment_id, start_time, end_time, text, metadata, embedding <=> $1 AS distance
		FROM video_segments
		WHERE ($2 = '' OR video_id = $2)
		ORDER BY embedding <=> $1
		LIMIT $3`, vec, videoID, k)
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var h core.Hit
		var meta []byte
		if err := rows.Scan(&h.ID, &h.Start, &h.End, &h.Text, &meta, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan segment hit: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, fmt.Errorf("decode segment metadata: %w", err)
			}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func metadataJSON(metadata []map[string]string, i int) ([]byte, error) {
	if metadata == nil || metadata[i] == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata[i])
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
