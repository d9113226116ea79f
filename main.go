package main

import (
	"log"
	"net/http"
	"os"

	"videoJudge/config"
	"videoJudge/server"
	"videoJudge/storage"
	"videoJudge/utils"
)

func main() {
	if err := os.MkdirAll(utils.DataRoot(), 0755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	if cfg != nil && !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
		log.Printf("Warning: no API configured, falling back to local backends")
	}

	if err := storage.InitVectorStore(); err != nil {
		log.Fatalf("failed to init vector store: %v", err)
	}
	backend := os.Getenv("STORE")
	if backend == "" {
		backend = "memory"
	}
	log.Printf("Vector store initialized: %s", backend)

	mux := http.NewServeMux()
	server.Routes(mux, storage.Global(), utils.DataRoot())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	log.Printf("videoJudge listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
