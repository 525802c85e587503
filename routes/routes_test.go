package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cabbooking/config"
	"cabbooking/handlers"
	"cabbooking/middleware"
	"cabbooking/services/availability"
	"cabbooking/services/booking"
	"cabbooking/utils"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, monitor *utils.HealthMonitor, perMinute int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fleet, err := config.LoadFleet("")
	if err != nil {
		t.Fatalf("LoadFleet: %v", err)
	}
	store := booking.NewStore()
	index := availability.NewIndex()
	neighbors, err := booking.Provision(fleet, store, index)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	svc := booking.NewBookingService(store, index, neighbors, booking.Options{}, nil)
	h := handlers.NewHealthHandler(svc, monitor, nil)
	return NewRouter(handlers.NewHandlerBundle(h, middleware.NewRateLimiter(perMinute)))
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestHealthReflectsMonitor(t *testing.T) {
	m := utils.NewHealthMonitor(nil)
	m.Register("redis", func(context.Context) error { return errors.New("down") })
	m.Check(context.Background())

	w := get(newTestRouter(t, m, 0), "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	w = get(newTestRouter(t, nil, 0), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestBookingLookups(t *testing.T) {
	r := newTestRouter(t, nil, 0)

	if w := get(r, "/api/bookings/CAB999"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown booking status = %d, want 404", w.Code)
	}

	w := get(r, "/api/cabs")
	if w.Code != http.StatusOK {
		t.Fatalf("cabs status = %d", w.Code)
	}
	var body struct {
		Cabs []json.RawMessage `json:"cabs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode cabs: %v", err)
	}
	if len(body.Cabs) == 0 {
		t.Fatal("no cabs listed")
	}
}

func TestRateLimitedAPI(t *testing.T) {
	r := newTestRouter(t, nil, 1)
	if w := get(r, "/api/bookings"); w.Code != http.StatusOK {
		t.Fatalf("first call status = %d", w.Code)
	}
	if w := get(r, "/api/bookings"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second call status = %d, want 429", w.Code)
	}
}
