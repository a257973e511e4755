package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/server/auth"
)

var testSecret = []byte("test-secret")

type fakeService struct {
	openResp  *domain.OpenShiftResponse
	openErr   error
	closeResp *domain.CloseShiftResponse
	closeErr  error
	statResp  *domain.ShiftStatusResponse
	statErr   error

	lastSubject string
	lastShiftID string
	lastSealed  []byte
}

func (f *fakeService) OpenShift(ctx context.Context, subjectID string, lat, lng float64) (*domain.OpenShiftResponse, error) {
	f.lastSubject = subjectID
	return f.openResp, f.openErr
}

func (f *fakeService) CloseShift(ctx context.Context, subjectID, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error) {
	f.lastSubject = subjectID
	f.lastShiftID = shiftID
	f.lastSealed = sealed
	return f.closeResp, f.closeErr
}

func (f *fakeService) Status(ctx context.Context, subjectID string) (*domain.ShiftStatusResponse, error) {
	f.lastSubject = subjectID
	return f.statResp, f.statErr
}

func newTestRouter(t *testing.T, svc ShiftService) http.Handler {
	t.Helper()
	h := NewHandler(svc, logging.NewJSON(io.Discard))
	return NewRouter(h, RouterOptions{
		SecretKey:      testSecret,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
}

func bearer(t *testing.T, subjectID string) string {
	t.Helper()
	token, err := auth.GenerateToken(subjectID, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, router http.Handler, method, path, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleOpen(t *testing.T) {
	svc := &fakeService{openResp: &domain.OpenShiftResponse{
		ShiftID:    "shift-1",
		SessionKey: base64.StdEncoding.EncodeToString(make([]byte, 32)),
		Site:       "Resolving...",
	}}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/open", bearer(t, "subject-7"),
		domain.OpenShiftRequest{Latitude: 28.61, Longitude: 77.21})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "subject-7", svc.lastSubject)

	var resp domain.OpenShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shift-1", resp.ShiftID)
	assert.NotEmpty(t, resp.SessionKey)
}

func TestHandleOpen_MissingToken(t *testing.T) {
	router := newTestRouter(t, &fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/shift/open", "", domain.OpenShiftRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleOpen_BadToken(t *testing.T) {
	router := newTestRouter(t, &fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/shift/open", "Bearer garbage", domain.OpenShiftRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleClose_Committed(t *testing.T) {
	closedAt := time.Now().UTC()
	svc := &fakeService{closeResp: &domain.CloseShiftResponse{
		Code:     domain.CodeCommitted,
		ShiftID:  "shift-1",
		ClosedAt: &closedAt,
	}}
	router := newTestRouter(t, svc)

	sealed := []byte("sealed-report")
	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString(sealed)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shift-1", svc.lastShiftID)
	assert.Equal(t, sealed, svc.lastSealed)

	var resp domain.CloseShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CodeCommitted, resp.Code)
}

func TestHandleClose_AlreadyClosedIsOK(t *testing.T) {
	svc := &fakeService{closeResp: &domain.CloseShiftResponse{Code: domain.CodeAlreadyClosed, ShiftID: "shift-1"}}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.CloseShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CodeAlreadyClosed, resp.Code)
}

func TestHandleClose_ValidationRejectedIs422(t *testing.T) {
	svc := &fakeService{closeResp: &domain.CloseShiftResponse{
		Code:  domain.CodeValidationRejected,
		Lines: []domain.LineError{{Barcode: "8901234567890", Reason: "negative quantity"}},
	}}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp domain.CloseShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "8901234567890", resp.Lines[0].Barcode)
}

func TestHandleClose_CorruptedIs422(t *testing.T) {
	svc := &fakeService{closeResp: &domain.CloseShiftResponse{
		Code:    domain.CodeCorrupted,
		Message: "payload cannot be decrypted",
	}}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp domain.CloseShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CodeCorrupted, resp.Code)
}

func TestHandleClose_ForeignShiftIs401(t *testing.T) {
	svc := &fakeService{closeErr: domain.ErrUnauthorized}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "intruder"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleClose_ServiceFailureIs500(t *testing.T) {
	svc := &fakeService{closeErr: errors.New("db down")}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp domain.CloseShiftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CodeTransientError, resp.Code)
}

func TestHandleClose_BadBase64(t *testing.T) {
	router := newTestRouter(t, &fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{ShiftID: "shift-1", Payload: "not base64!!!"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleClose_MissingShiftID(t *testing.T) {
	router := newTestRouter(t, &fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/shift/close", bearer(t, "subject-7"),
		domain.CloseShiftRequest{Payload: base64.StdEncoding.EncodeToString([]byte("x"))})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	openedAt := time.Now().UTC()
	svc := &fakeService{statResp: &domain.ShiftStatusResponse{
		Active:   true,
		ShiftID:  "shift-1",
		Status:   domain.ShiftOpen,
		OpenedAt: &openedAt,
		Site:     "Connaught Place",
	}}
	router := newTestRouter(t, svc)

	rec := doRequest(t, router, http.MethodGet, "/api/shift/status", bearer(t, "subject-7"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.ShiftStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, "Connaught Place", resp.Site)
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t, &fakeService{})

	rec := doRequest(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	router := NewRouter(NewHandler(&fakeService{statResp: &domain.ShiftStatusResponse{}}, logging.NewJSON(io.Discard)),
		RouterOptions{SecretKey: testSecret, RateLimitRPS: 1, RateLimitBurst: 2})

	authHeader := bearer(t, "subject-7")
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doRequest(t, router, http.MethodGet, "/api/shift/status", authHeader, nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
