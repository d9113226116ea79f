package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"videoJudge/core"
	"videoJudge/processors"
	"videoJudge/storage"
	"videoJudge/utils"
)

// AnalyzeHandlers serves the analysis and search endpoints.
type AnalyzeHandlers struct {
	store   storage.VectorStore
	dataDir string
}

func NewAnalyzeHandlers(store storage.VectorStore, dataDir string) *AnalyzeHandlers {
	return &AnalyzeHandlers{store: store, dataDir: dataDir}
}

type analyzeRequest struct {
	VideoPath string `json:"video_path"`
	URL       string `json:"url"`
}

// AnalyzeHandler accepts a multipart video upload or a JSON body naming a
// local path or YouTube URL, runs the pipeline, and returns the full
// analysis result.
func (h *AnalyzeHandlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only POST is supported"})
		return
	}

	raw, cleanup, err := h.extractInput(r)
	if err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	workDir := filepath.Join(h.dataDir, utils.NewID())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("create work dir: %v", err)})
		return
	}

	input, err := processors.ResolveInput(raw, workDir)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		core.WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	pipeline := processors.NewPipeline(h.store)
	result, err := pipeline.Analyze(input, workDir, func(status string, percent int) {
		log.Printf("[%3d%%] %s", percent, status)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrNotFound) {
			status = http.StatusNotFound
		}
		core.WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	core.WriteJSON(w, http.StatusOK, result)
}

// extractInput pulls the input reference from a multipart upload or JSON
// body. For uploads the file is saved under the data dir and the returned
// cleanup removes it.
func (h *AnalyzeHandlers) extractInput(r *http.Request) (string, func(), error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		file, header, err := r.FormFile("video")
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %v", err)
		}
		defer file.Close()

		dst := filepath.Join(h.dataDir, utils.NewID()+filepath.Ext(header.Filename))
		out, err := os.Create(dst)
		if err != nil {
			return "", nil, fmt.Errorf("save upload: %v", err)
		}
		if _, err := io.Copy(out, file); err != nil {
			out.Close()
			os.Remove(dst)
			return "", nil, fmt.Errorf("save upload: %v", err)
		}
		out.Close()
		return dst, func() { os.Remove(dst) }, nil
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", nil, err
	}
	switch {
	case req.URL != "":
		return req.URL, nil, nil
	case req.VideoPath != "":
		return req.VideoPath, nil, nil
	default:
		return "", nil, fmt.Errorf("missing video_path or url")
	}
}

// SearchHandler embeds the query text and searches stored segment
// embeddings, optionally scoped to one video.
func (h *AnalyzeHandlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only GET is supported"})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	k := 5
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "k must be a positive integer"})
			return
		}
		k = parsed
	}
	videoID := r.URL.Query().Get("video_id")

	vecs, err := processors.EmbedTexts([]string{query})
	if err != nil {
		core.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": fmt.Sprintf("embed query: %v", err)})
		return
	}

	var hits []core.Hit
	if r.URL.Query().Get("kind") == "frames" {
		hits, err = h.store.SearchFrames(vecs[0], k, videoID)
	} else {
		hits, err = h.store.SearchSegments(vecs[0], k, videoID)
	}
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"hits":  hits,
	})
}

// HealthHandler reports liveness.
func (h *AnalyzeHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
