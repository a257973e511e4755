package enrich

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/server/store"
)

type stubGeocoder struct {
	site string
	err  error
}

func (s *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return s.site, s.err
}

// siteRecorder implements just enough of store.ShiftRepository.
type siteRecorder struct {
	mu         sync.Mutex
	openSites  map[string]string
	closeSites map[string]string
}

func newSiteRecorder() *siteRecorder {
	return &siteRecorder{openSites: make(map[string]string), closeSites: make(map[string]string)}
}

func (r *siteRecorder) Create(ctx context.Context, s *store.Shift) error { return nil }
func (r *siteRecorder) Get(ctx context.Context, id string) (*store.Shift, error) {
	return nil, domain.ErrNotFound
}
func (r *siteRecorder) GetForUpdate(ctx context.Context, id string) (*store.Shift, error) {
	return nil, domain.ErrNotFound
}
func (r *siteRecorder) CurrentForSubject(ctx context.Context, subjectID string, dayStart time.Time) (*store.Shift, error) {
	return nil, domain.ErrNotFound
}
func (r *siteRecorder) Close(ctx context.Context, id string, closedAt time.Time, lat, lng float64) error {
	return nil
}

func (r *siteRecorder) SetOpenSite(ctx context.Context, id, site string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openSites[id] = site
	return nil
}

func (r *siteRecorder) SetCloseSite(ctx context.Context, id, site string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeSites[id] = site
	return nil
}

func (r *siteRecorder) openSite(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openSites[id]
}

func (r *siteRecorder) closeSite(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeSites[id]
}

func runQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestQueue_ResolvesOpenAndCloseSites(t *testing.T) {
	shifts := newSiteRecorder()
	q := NewQueue(&stubGeocoder{site: "Connaught Place, New Delhi"}, shifts,
		logging.NewJSON(io.Discard), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	runQueue(t, q)

	q.EnqueueOpen("shift-1", 28.6139, 77.2090)
	q.EnqueueClose("shift-1", 28.7, 77.3)

	require.Eventually(t, func() bool {
		return shifts.openSite("shift-1") != "" && shifts.closeSite("shift-1") != ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Connaught Place, New Delhi", shifts.openSite("shift-1"))
}

func TestQueue_SkipsUnknownPosition(t *testing.T) {
	shifts := newSiteRecorder()
	q := NewQueue(&stubGeocoder{site: "somewhere"}, shifts,
		logging.NewJSON(io.Discard), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	runQueue(t, q)

	q.EnqueueOpen("shift-1", 0, 0)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, shifts.openSite("shift-1"))
}

func TestQueue_GeocoderFailureLeavesPlaceholder(t *testing.T) {
	shifts := newSiteRecorder()
	q := NewQueue(&stubGeocoder{err: errors.New("quota exceeded")}, shifts,
		logging.NewJSON(io.Discard), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	runQueue(t, q)

	q.EnqueueOpen("shift-1", 28.6139, 77.2090)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, shifts.openSite("shift-1"))
}

func TestQueue_DropsWhenFull(t *testing.T) {
	shifts := newSiteRecorder()
	// no worker running, buffer of one
	q := NewQueue(&stubGeocoder{site: "x"}, shifts,
		logging.NewJSON(io.Discard), WithBuffer(1))

	q.EnqueueOpen("shift-1", 1, 1)
	q.EnqueueOpen("shift-2", 1, 1)

	assert.Len(t, q.jobs, 1)
}

func TestHTTPGeocoder_ReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "28.6139", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.209", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"display_name": "Connaught Place, New Delhi, India"}`))
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGeocoder(srv.URL, "test-key")
	site, err := g.ReverseGeocode(context.Background(), 28.6139, 77.209)
	require.NoError(t, err)
	assert.Equal(t, "Connaught Place, New Delhi, India", site)
}

func TestHTTPGeocoder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, err := NewHTTPGeocoder(srv.URL, "k").ReverseGeocode(context.Background(), 1, 1)
	assert.Error(t, err)
}
