package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videoJudge/config"
	"videoJudge/core"
)

const (
	milvusFrameColl   = "video_frames"
	milvusSegmentColl = "video_segments"
)

// MilvusVectorStore stores embeddings in Milvus with HNSW cosine indexes,
// one collection for frames and one for transcript segments.
type MilvusVectorStore struct {
	mc  client.Client
	dim int
}

func newMilvusVectorStore(cfg *config.Config) (*MilvusVectorStore, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	mc, err := client.NewClient(context.Background(), client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusVectorStore{mc: mc, dim: cfg.EmbeddingDim}
	if err := s.ensureCollection(milvusFrameColl, frameSchema); err != nil {
		return nil, err
	}
	if err := s.ensureCollection(milvusSegmentColl, segmentSchema); err != nil {
		return nil, err
	}
	return s, nil
}

func frameSchema(dim int) *entity.Schema {
	schema := entity.NewSchema()
	schema.WithName(milvusFrameColl)
	schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("doc_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
	schema.WithField(entity.NewField().WithName("ts").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
	return schema
}

func segmentSchema(dim int) *entity.Schema {
	schema := entity.NewSchema()
	schema.WithName(milvusSegmentColl)
	schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("doc_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
	schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
	schema.WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
	return schema
}

func (s *MilvusVectorStore) ensureCollection(name string, build func(int) *entity.Schema) error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !has {
		if err := s.mc.CreateCollection(ctx, build(s.dim), int32(2)); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, name, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index on %s: %w", name, err)
	}
	if err := s.mc.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("load collection %s: %w", name, err)
	}
	return nil
}

func (s *MilvusVectorStore) UpsertFrameEmbeddings(videoID string, embeddings [][]float32, timestamps []float64, metadata []map[string]string) error {
	if err := validateFrameUpsert(embeddings, timestamps, metadata); err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return nil
	}
	unlock := lockVideo(videoID)
	defer unlock()

	n := len(embeddings)
	docIDs := make([]string, n)
	videoIDs := make([]string, n)
	metas := make([]string, n)
	vectors := make([][]float32, n)
	for i := range embeddings {
		docIDs[i] = fmt.Sprintf("%s_frame_%d", videoID, i)
		videoIDs[i] = videoID
		metas[i] = encodeMetadata(metadata, i)
		vectors[i] = embeddings[i]
	}

	ctx := context.Background()
	_, err := s.mc.Insert(ctx, milvusFrameColl, "",
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnDouble("ts", timestamps),
		entity.NewColumnVarChar("metadata", metas),
		entity.NewColumnFloatVector("vector", s.dim, vectors))
	if err != nil {
		return fmt.Errorf("insert frames for %s: %w", videoID, err)
	}
	return nil
}

func (s *MilvusVectorStore) UpsertSegmentEmbeddings(videoID string, embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error {
	if err := validateSegmentUpsert(embeddings, segments, metadata); err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return nil
	}
	unlock := lockVideo(videoID)
	defer unlock()

	n := len(embeddings)
	docIDs := make([]string, n)
	videoIDs := make([]string, n)
	starts := make([]float64, n)
	ends := make([]float64, n)
	texts := make([]string, n)
	metas := make([]string, n)
	vectors := make([][]float32, n)
	for i := range embeddings {
		docIDs[i] = fmt.Sprintf("%s_segment_%d", videoID, i)
		videoIDs[i] = videoID
		starts[i] = segments[i].Start
		ends[i] = segments[i].End
		texts[i] = segments[i].Text
		metas[i] = encodeMetadata(metadata, i)
		vectors[i] = embeddings[i]
	}

	ctx := context.Background()
	_, err := s.mc.Insert(ctx, milvusSegmentColl, "",
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("metadata", metas),
		entity.NewColumnFloatVector("vector", s.dim, vectors))
	if err != nil {
		return fmt.Errorf("insert segments for %s: %w", videoID, err)
	}
	return nil
}

func (s *MilvusVectorStore) SearchFrames(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	results, err := s.search(milvusFrameColl, embedding, k, videoID, []string{"doc_id", "ts", "metadata"})
	if err != nil {
		return nil, err
	}

	var hits []core.Hit
	for _, r := range results {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			h := core.Hit{Distance: 1 - float64(r.Scores[i])}
			h.ID = varcharAt(cols, "doc_id", i)
			h.TimestampSec = doubleAt(cols, "ts", i)
			h.Metadata = decodeMetadata(varcharAt(cols, "metadata", i))
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusVectorStore) SearchSegments(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	results, err := s.search(milvusSegmentColl, embedding, k, videoID, []string{"doc_id", "start", "end", "text", "metadata"})
	if err != nil {
		return nil, err
	}

	var hits []core.Hit
	for _, r := range results {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			h := core.Hit{Distance: 1 - float64(r.Scores[i])}
			h.ID = varcharAt(cols, "doc_id", i)
			h.Start = doubleAt(cols, "start", i)
			h.End = doubleAt(cols, "end", i)
			h.Text = varcharAt(cols, "text", i)
			h.Metadata = decodeMetadata(varcharAt(cols, "metadata", i))
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusVectorStore) search(coll string, embedding []float32, k int, videoID string, fields []string) ([]client.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	filter := ""
	if videoID != "" {
		filter = fmt.Sprintf("video_id == %q", strings.ReplaceAll(videoID, "\"", "\\\""))
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	ctx := context.Background()
	res, err := s.mc.Search(ctx, coll, []string{}, filter, fields,
		[]entity.Vector{entity.FloatVector(embedding)}, "vector", entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", coll, err)
	}
	return res, nil
}

func columnsByName(fields []entity.Column) map[string]entity.Column {
	cols := make(map[string]entity.Column, len(fields))
	for _, c := range fields {
		cols[c.Name()] = c
	}
	return cols
}

func varcharAt(cols map[string]entity.Column, name string, i int) string {
	if c, ok := cols[name].(*entity.ColumnVarChar); ok {
		data := c.Data()
		if i < len(data) {
			return data[i]
		}
	}
	return ""
}

func doubleAt(cols map[string]entity.Column, name string, i int) float64 {
	if c, ok := cols[name].(*entity.ColumnDouble); ok {
		data := c.Data()
		if i < len(data) {
			return data[i]
		}
	}
	return 0
}

func encodeMetadata(metadata []map[string]string, i int) string {
	if metadata == nil || metadata[i] == nil {
		return ""
	}
	b, err := json.Marshal(metadata[i])
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
