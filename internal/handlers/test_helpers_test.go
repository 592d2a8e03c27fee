package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghcetraro/pod-forward/internal/broker"
	"github.com/ghcetraro/pod-forward/internal/config"
	"github.com/ghcetraro/pod-forward/internal/database"
	"github.com/ghcetraro/pod-forward/internal/ports"
	"github.com/ghcetraro/pod-forward/internal/supervisor"
	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newChiRequest creates an *http.Request with chi URL params populated.
func newChiRequest(method, path string, params map[string]string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func setupTestDB(t *testing.T) func() {
	t.Helper()
	var err error
	database.DB, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test DB: %v", err)
	}
	if err := database.DB.AutoMigrate(&database.ForwardEvent{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return func() {
		sqlDB, _ := database.DB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		database.DB = nil
	}
}

// fakeKubectl writes a stand-in executor script that fails fast for
// pod/missing and otherwise runs until killed.
func fakeKubectl(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
case "$2" in
  pod/missing)
    echo "pod not found" >&2
    exit 1
    ;;
esac
exec sleep 60
`
	path := filepath.Join(t.TempDir(), "kubectl")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake kubectl: %v", err)
	}
	return path
}

func setupTestBroker(t *testing.T, portStart, portEnd int) {
	t.Helper()

	config.Cfg.DefaultNamespace = "argocd"
	config.Cfg.DefaultPort = 8080

	alloc, err := ports.NewAllocator(portStart, portEnd)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	sup := supervisor.New(fakeKubectl(t), 50*time.Millisecond)
	Broker = broker.New(broker.Config{
		Lifetime:    time.Minute,
		GracePeriod: 500 * time.Millisecond,
		BindAddress: "127.0.0.1",
	}, alloc, sup)

	t.Cleanup(func() {
		Broker.StopAll()
		Broker = nil
	})
}
