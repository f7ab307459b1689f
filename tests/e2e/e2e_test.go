// Package e2e provides end-to-end tests for the defect detection service.
//
// TestMain stands up the full service against a temporary SQLite database
// and a hot-reloading params file, then runs the tests over real HTTP:
//
//	go test -v -timeout 5m ./tests/e2e/...
package e2e

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/api"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/cache"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/params"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/store"
)

// =============================================================================
// Test Globals
// =============================================================================

var (
	testStore   store.Store
	testHolder  *detect.Holder
	testWatcher *params.Watcher
	testClient  *http.Client
	baseURL     string
	paramsFile  string
	testServer  *http.Server
)

// =============================================================================
// TestMain Setup
// =============================================================================

func TestMain(m *testing.M) {
	code := setup()
	if code != 0 {
		os.Exit(code)
	}

	result := m.Run()

	teardown()

	os.Exit(result)
}

func setup() int {
	log.Println("E2E Setup: Initializing test environment...")

	// 1. Create temp database and params file
	tmpDir, err := os.MkdirTemp("", "defectdetect_e2e_")
	if err != nil {
		log.Printf("Failed to create temp dir: %v", err)
		return 1
	}
	tmpDB := filepath.Join(tmpDir, "test.db")
	log.Printf("E2E Setup: Using database: %s", tmpDB)

	paramsFile = filepath.Join(tmpDir, "params.yaml")
	if err := os.WriteFile(paramsFile, params.DefaultsYAML(), 0o644); err != nil {
		log.Printf("Failed to write params file: %v", err)
		return 1
	}

	// 2. Create SQLite store
	s, err := store.NewSQLiteStore(tmpDB)
	if err != nil {
		log.Printf("Failed to create store: %v", err)
		return 1
	}
	testStore = s
	log.Println("E2E Setup: SQLite store initialized")

	// 3. Create detector with hot-reloadable params
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testHolder = detect.NewHolder(nil)
	w, err := params.NewWatcher(paramsFile, logger, func(p detect.Params, reloadErr error) {
		if reloadErr != nil {
			log.Printf("E2E: params reload failed: %v", reloadErr)
			return
		}
		det, buildErr := detect.NewNativeDetector(p)
		if buildErr != nil {
			log.Printf("E2E: detector rebuild failed: %v", buildErr)
			return
		}
		testHolder.Swap(det)
	})
	if err != nil {
		log.Printf("Failed to create params watcher: %v", err)
		return 1
	}
	testWatcher = w

	det, err := detect.NewNativeDetector(w.Current())
	if err != nil {
		log.Printf("Failed to create detector: %v", err)
		return 1
	}
	testHolder.Swap(det)
	log.Println("E2E Setup: Detector initialized")

	// 4. Create HTTP handler
	handler := api.NewHandler(testStore, cache.NewNoopCache(), testHolder, logger, "e2e", api.DefaultHandlerConfig())
	log.Println("E2E Setup: HTTP handler created")

	// 5. Find an available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Printf("Failed to find available port: %v", err)
		return 1
	}
	port := listener.Addr().(*net.TCPAddr).Port
	baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	log.Printf("E2E Setup: Server will listen on port %d", port)

	// 6. Start server
	testServer = &http.Server{
		Handler: handler.Routes(),
	}
	go func() {
		if err := testServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
	log.Println("E2E Setup: HTTP server started")

	// 7. Create HTTP client
	testClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	// 8. Wait for server to be ready
	if err := waitForReady(baseURL+"/ready", 10*time.Second); err != nil {
		log.Printf("Server failed to become ready: %v", err)
		return 1
	}
	log.Println("E2E Setup: Server is ready")

	return 0
}

func teardown() {
	log.Println("E2E Teardown: Cleaning up...")

	if testServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		testServer.Shutdown(ctx)
		log.Println("E2E Teardown: HTTP server stopped")
	}

	if testWatcher != nil {
		testWatcher.Close()
		log.Println("E2E Teardown: Params watcher closed")
	}

	if testStore != nil {
		testStore.Close()
		log.Println("E2E Teardown: Database closed")
	}

	log.Println("E2E Teardown: Complete!")
}

// waitForReady polls the readiness endpoint until it responds.
func waitForReady(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}
