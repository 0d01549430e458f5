package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/framevault/dedupe-engine/internal/api"
	"github.com/framevault/dedupe-engine/internal/cache"
	"github.com/framevault/dedupe-engine/internal/db"
	"github.com/framevault/dedupe-engine/internal/imaging"
	"github.com/framevault/dedupe-engine/internal/resolution"
	"github.com/framevault/dedupe-engine/internal/scanner"
	"github.com/framevault/dedupe-engine/internal/visual"
	"github.com/framevault/dedupe-engine/pkg/models"
)

func main() {
	log.Println("Starting FrameVault Dedupe Engine (Microservice: visual-duplicates-resolution)...")
	log.Println("Initializing visual fingerprint caches...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values.
	// ────────────────────────────────────────────────────────────────────

	dbUrl := requireEnv("DATABASE_URL")

	cache.InitVisualDataCaches()

	dbConn, err := db.Connect(dbUrl, resolveConditional)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without the rule engine. Error: %v", err)
		dbConn = nil
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Setup the Rule Engine and Library Scanner.
	// GUARD: Only start if dbConn is non-nil to avoid runtime panic
	var (
		manager    *resolution.Manager
		libScanner *scanner.LibraryScanner
	)
	if dbConn != nil {
		manager = resolution.InitManager(dbConn, api.BroadcastResolutionAlert(wsHub))

		rules, err := dbConn.LoadRules(context.Background())
		if err != nil {
			log.Printf("Warning: failed to load persisted rules: %v", err)
		}
		if len(rules) == 0 {
			// first boot: seed the suggestions, paused
			rules = resolution.DefaultRuleSuggestions(resolveConditional)
			log.Printf("Seeding %d default auto-resolution rules (paused)", len(rules))
		}
		if err := manager.SetRules(context.Background(), rules); err != nil {
			log.Printf("Warning: failed to install rule set: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go manager.Run(ctx)

		mediaRoot := getEnvOrDefault("MEDIA_ROOT", "./media")
		workers := scannerWorkers()
		libScanner = scanner.NewLibraryScanner(dbConn, fileDecoder(mediaRoot), api.BroadcastScanAlert(wsHub), workers)
	} else {
		log.Println("WARNING: Database unavailable — engine running in compare-only mode (no rules/scanner)")
	}

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, manager, wsHub, libScanner, resolveConditional)

	port := getEnvOrDefault("PORT", "5340")

	// Start the server
	log.Printf("Engine running on :%s (API Node: visual-duplicates-resolution)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// fileDecoder returns the scanner's decode capability: library files live
// under MEDIA_ROOT in one level of hash buckets (ab/abcd1234....ext-less).
func fileDecoder(mediaRoot string) scanner.DecodeFunc {
	return func(ctx context.Context, media *models.MediaResult) (*visual.Raster, error) {
		if len(media.Hash) < 2 {
			return nil, fmt.Errorf("bad hash %q", media.Hash)
		}

		path := filepath.Join(mediaRoot, media.Hash[:2], media.Hash)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		raster, _, err := imaging.Decode(f)
		return raster, err
	}
}

func scannerWorkers() int {
	if v := os.Getenv("SCANNER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: ignoring bad SCANNER_WORKERS value %q", v)
	}

	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return workers
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
