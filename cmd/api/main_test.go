package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wellfront/scheduling-engine/internal/config"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

func TestSetupEngineMetricsExposesMetrics(t *testing.T) {
	handler, engineMetrics, registry := setupEngineMetrics()
	if handler == nil || engineMetrics == nil || registry == nil {
		t.Fatalf("expected non-nil handler, metrics and registry")
	}

	engineMetrics.ObserveSlotQuery("ok", 4, 0.02)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "wellfront_scheduling_slot_queries_total") {
		t.Fatalf("expected slot query counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestSetupSlotCacheDisabledWithoutAddr(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{}

	if cache := setupSlotCache(context.Background(), cfg, logger); cache != nil {
		t.Fatalf("expected nil cache without a redis address")
	}
}

func TestSetupSlotCacheConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.New("error")
	cfg := &appconfig.Config{
		RedisAddr:    mr.Addr(),
		SlotCacheTTL: time.Second,
	}

	cache := setupSlotCache(context.Background(), cfg, logger)
	if cache == nil {
		t.Fatalf("expected cache against a reachable redis")
	}
}
