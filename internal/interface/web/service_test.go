package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cityofzion/faucetd/internal/core/application"
	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIndexPage(t *testing.T) {
	app := newStubAppService()
	mux := newTestMux(t, app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Testnet Faucet")
	require.Contains(t, body, "1200")
	require.NotContains(t, body, "running low on funds")
}

func TestIndexPageLowFunds(t *testing.T) {
	app := newStubAppService()
	app.status.Primary = domain.Fixed8FromInt(1)

	mux := newTestMux(t, app)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "running low on funds")
}

func TestAskSuccessRedirects(t *testing.T) {
	app := newStubAppService()
	mux := newTestMux(t, app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, newAskRequest("AJkpDoJ3kr7hDLA5PXfyLHvjcoDDUgKrLW", true))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/success", rec.Header().Get("Location"))
	require.Equal(t, "AJkpDoJ3kr7hDLA5PXfyLHvjcoDDUgKrLW", app.lastReq.Address)
	require.True(t, app.lastReq.Agreed)
	require.NotEmpty(t, app.lastReq.Client)
}

func TestAskWithoutAgreement(t *testing.T) {
	app := newStubAppService()
	app.claimErr = errors.INVALID_INPUT.New("user did not agree to the guidelines").
		WithMetadata(errors.InputMetadata{Field: "agreement"})

	mux := newTestMux(t, app)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, newAskRequest("AJkpDoJ3kr7hDLA5PXfyLHvjcoDDUgKrLW", false))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "agree to the guidelines")
}

func TestAskAddressAlreadyClaimed(t *testing.T) {
	app := newStubAppService()
	app.claimErr = errors.RATE_LIMITED.New("address already claimed today").
		WithMetadata(errors.RateLimitMetadata{By: "address", Addr: "addr"})

	mux := newTestMux(t, app)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, newAskRequest("addr", true))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "Already requested today")
	// The rejected address is echoed back into the form.
	require.Contains(t, rec.Body.String(), `value="addr"`)
}

func TestAskIncompleteSignature(t *testing.T) {
	app := newStubAppService()
	app.claimErr = errors.INCOMPLETE_SIGNATURE.New("signing context not completed")

	mux := newTestMux(t, app)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, newAskRequest("AJkpDoJ3kr7hDLA5PXfyLHvjcoDDUgKrLW", true))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "signature is incomplete")
}

func TestIndexComeBackVariant(t *testing.T) {
	mux := newTestMux(t, newStubAppService())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "eligible again")
}

func TestSuccessPage(t *testing.T) {
	app := newStubAppService()
	app.result = &domain.Transaction{
		ID: "abc123",
		Outputs: []domain.TransferOutput{
			{Asset: domain.AssetSecondary, Amount: domain.Fixed8FromInt(2000), To: "dest"},
		},
	}

	mux := newTestMux(t, app)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/success", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "abc123")
}

func TestSuccessPageEmptySlotRedirects(t *testing.T) {
	app := newStubAppService()
	mux := newTestMux(t, app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/success", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestAskRateLimited(t *testing.T) {
	app := newStubAppService()
	svc, err := NewService(Config{
		Host: "localhost", Port: 8080, AppSvc: app, AskRate: 0.0001, AskBurst: 2,
	})
	require.NoError(t, err)
	mux := svc.(*service).server.Handler

	var lastCode int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := newAskRequest("addr", true)
		req.RemoteAddr = "192.0.2.10:1234"
		mux.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, lastCode)

	// A different client is not affected by the exhausted bucket.
	rec := httptest.NewRecorder()
	req := newAskRequest("addr", true)
	req.RemoteAddr = "192.0.2.11:1234"
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRateLimiterStop(t *testing.T) {
	rl := newRateLimiter(1, 1)
	require.True(t, rl.allow("192.0.2.1"))

	rl.stop()
	// Stopping twice is safe, and the cleanup goroutine has been released.
	rl.stop()
	select {
	case <-rl.quit:
	default:
		t.Fatal("limiter quit channel still open after stop")
	}

	// A stopped limiter still answers; only the background cleanup is gone.
	require.True(t, rl.allow("192.0.2.2"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5678"
	require.Equal(t, "192.0.2.10", clientKey(req))

	// Behind a proxy the original client is the first forwarded entry.
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 70.41.3.18")
	require.Equal(t, "203.0.113.7", clientKey(req))
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(t, newStubAppService())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func newTestMux(t *testing.T, app *stubAppService) http.Handler {
	t.Helper()
	svc, err := NewService(Config{
		Host: "localhost", Port: 8080, AppSvc: app, AskRate: 100, AskBurst: 100,
	})
	require.NoError(t, err)
	return svc.(*service).server.Handler
}

func newAskRequest(address string, agree bool) *http.Request {
	form := url.Values{}
	form.Set("coz_addr", address)
	if agree {
		form.Set("do_agree", "on")
	}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "198.51.100.1:4242"
	return req
}

type stubAppService struct {
	claimErr  error
	status    *application.Status
	statusErr error
	result    *domain.Transaction
	lastReq   domain.ClaimRequest
}

func newStubAppService() *stubAppService {
	return &stubAppService{
		status: &application.Status{
			Height:        1200,
			WalletHeight:  1199,
			Primary:       domain.Fixed8FromInt(100000),
			Secondary:     domain.Fixed8FromInt(2000000),
			DripPrimary:   domain.Fixed8FromInt(100),
			DripSecondary: domain.Fixed8FromInt(2000),
		},
	}
}

func (s *stubAppService) Start() error { return nil }

func (s *stubAppService) Stop() {}

func (s *stubAppService) Claim(
	_ context.Context, req domain.ClaimRequest,
) (*domain.Transaction, error) {
	s.lastReq = req
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return &domain.Transaction{ID: "tx-" + req.Address}, nil
}

func (s *stubAppService) GetStatus(_ context.Context) (*application.Status, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubAppService) TakeResult(_ context.Context) (*domain.Transaction, error) {
	tx := s.result
	s.result = nil
	return tx, nil
}
