package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/cache"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
)

// TestRouter_GetWeather_CairoThroughRealClient runs a lookup through the real
// Visual Crossing client, the service and the router against a stub upstream,
// then repeats it and expects the cached body with no second upstream call.
func TestRouter_GetWeather_CairoThroughRealClient(t *testing.T) {
	var calls atomic.Int32
	var gotPath, gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"days":[{"temp":31.2,"conditions":"Clear","humidity":40.1}]}`)
	}))
	defer upstream.Close()

	vc, err := client.NewVisualCrossingClient("test-api-key", upstream.URL+"/timeline", time.Second)
	if err != nil {
		t.Fatalf("NewVisualCrossingClient() error = %v", err)
	}
	store := cache.NewInMemoryCache()
	svc := service.NewWeatherService(vc, store, service.DefaultTTL, true)
	handler := NewHandler(svc, HandlerConfig{CityMinLength: 1, CityMaxLength: 100, APIKeyConfigured: true}, zap.NewNop())
	router := NewRouter(handler, RouterOptions{Logger: zap.NewNop()})
	want := `{"city":"Cairo","temperature":31.2,"condition":"Clear","humidity":40.1}`

	first := doRequest(t, router, http.MethodGet, "/weather/getWeather?city=Cairo")

	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want %d; body %s", first.Code, http.StatusOK, first.Body.String())
	}
	if got := first.Body.String(); got != want {
		t.Errorf("first body = %s, want %s", got, want)
	}
	today := svc.Today()
	if wantPath := "/timeline/Cairo/" + today + "/" + today; gotPath != wantPath {
		t.Errorf("upstream path = %q, want %q", gotPath, wantPath)
	}
	if gotKey != "test-api-key" {
		t.Errorf("upstream key = %q, want test-api-key", gotKey)
	}
	if stored, ok, _ := store.Get(context.Background(), "Cairo"+today); !ok || stored != want {
		t.Errorf("cached Cairo%s = %q (ok=%v), want %s", today, stored, ok, want)
	}

	second := doRequest(t, router, http.MethodGet, "/weather/getWeather?city=Cairo")

	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, want %d", second.Code, http.StatusOK)
	}
	if got := second.Body.String(); got != want {
		t.Errorf("second body = %s, want %s", got, want)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}
