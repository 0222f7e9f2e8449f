package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/runlog"
	"github.com/maxliesegang/telraam-data-collector/internal/storage"
)

// serve is a local preview server for the collected dataset: it exposes the
// data directory (including the generated landing page) plus a couple of
// JSON endpoints over the device index and the run history.
func main() {
	_ = godotenv.Load()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	port := 8080
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	store := storage.New(dataDir, nil)

	var runs *runlog.DB
	if path := os.Getenv("RUNLOG_DATABASE"); path != "" {
		db, err := runlog.Open(path)
		if err != nil {
			log.Fatalf("Failed to open run log: %v", err)
		}
		defer db.Close()
		runs = db
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		devices, err := store.LoadDeviceMetadata()
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status":    "error",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"devices":   len(devices),
			"timestamp": time.Now().UTC(),
		})
	})

	r.Get("/api/devices", func(w http.ResponseWriter, req *http.Request) {
		devices, err := store.LoadDeviceMetadata()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(devices)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		if runs == nil {
			http.Error(w, "run log not configured", http.StatusNotFound)
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		records, err := runs.RecentRuns(ctx, 50)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	})

	r.Handle("/*", http.FileServer(http.Dir(dataDir)))

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Serving %s on %s", dataDir, addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
