package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"videoJudge/storage"
)

// Routes registers all HTTP endpoints on mux.
func Routes(mux *http.ServeMux, store storage.VectorStore, dataDir string) {
	h := NewAnalyzeHandlers(store, dataDir)
	mux.HandleFunc("/analyze", h.AnalyzeHandler)
	mux.HandleFunc("/search", h.SearchHandler)
	mux.HandleFunc("/healthz", h.HealthHandler)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}
