package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
	"github.com/cityofzion/faucetd/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testAddress = "AJkpDoJ3kr7hDLA5PXfyLHvjcoDDUgKrLW"
	testClient  = "203.0.113.7"

	testDripPrimary   = 100
	testDripSecondary = 2000
	maxAttempts       = 3
)

func TestClaimSuccess(t *testing.T) {
	f := newFixture(t)

	tx, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.NotEmpty(t, tx.ID)
	require.True(t, tx.Signed())
	require.Len(t, tx.Outputs, 2)

	require.Equal(t, []string{tx.ID}, f.wallet.saved)
	require.Equal(t, []string{tx.ID}, f.relayer.relayed)
	require.Same(t, tx, f.session.slot)

	count, err := f.claims.CountForDay(context.Background(), domain.Day(time.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestClaimRequiresAgreement(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, false))
	requireErrorCode(t, err, errors.INVALID_INPUT.Code)
	require.Equal(t, "agreement", err.(errors.Error).Metadata()["field"])

	// The refused attempt still burns quota.
	attempts, countErr := f.attempts.CountForDay(
		context.Background(), testClient, domain.Day(time.Now()),
	)
	require.NoError(t, countErr)
	require.Equal(t, int64(1), attempts)
	require.Empty(t, f.relayer.relayed)
}

func TestClaimMissingAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Claim(context.Background(), newRequest("", testClient, true))
	requireErrorCode(t, err, errors.INVALID_INPUT.Code)
	require.Equal(t, "address", err.(errors.Error).Metadata()["field"])
}

func TestClaimClientQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	day := domain.Day(time.Now())
	for i := 0; i <= maxAttempts; i++ {
		require.NoError(t, f.attempts.Add(context.Background(), domain.ClientAttempt{
			Client: testClient, Day: day, At: time.Now(),
		}))
	}

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.RATE_LIMITED.Code)
	require.Equal(t, "client", err.(errors.Error).Metadata()["by"])
	require.Empty(t, f.relayer.relayed)
}

func TestClaimValidatesInputBeforeQuota(t *testing.T) {
	f := newFixture(t)
	day := domain.Day(time.Now())
	for i := 0; i <= maxAttempts; i++ {
		require.NoError(t, f.attempts.Add(context.Background(), domain.ClientAttempt{
			Client: testClient, Day: day, At: time.Now(),
		}))
	}

	// An over-quota client with a malformed submission is told about the
	// input problem, not the quota. The attempt is still recorded.
	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, false))
	requireErrorCode(t, err, errors.INVALID_INPUT.Code)
	require.Equal(t, "agreement", err.(errors.Error).Metadata()["field"])

	attempts, countErr := f.attempts.CountForDay(context.Background(), testClient, day)
	require.NoError(t, countErr)
	require.Equal(t, int64(maxAttempts+2), attempts)
}

func TestClaimAddressAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	created, err := f.claims.ClaimForDay(
		context.Background(), testAddress, domain.Day(time.Now()),
	)
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.RATE_LIMITED.Code)
	require.Equal(t, "address", err.(errors.Error).Metadata()["by"])
	require.Empty(t, f.wallet.saved)
	require.Empty(t, f.relayer.relayed)
}

func TestClaimConcurrentSameAddress(t *testing.T) {
	f := newFixture(t)

	const parallelism = 16
	var wg sync.WaitGroup
	results := make(chan error, parallelism)
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := fmt.Sprintf("198.51.100.%d", i)
			_, err := f.svc.Claim(context.Background(), newRequest(testAddress, client, true))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, limited int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		requireErrorCode(t, err, errors.RATE_LIMITED.Code)
		limited++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, parallelism-1, limited)
	require.Len(t, f.relayer.relayed, 1)
}

func TestClaimInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.builder.err = ports.ErrInsufficientFunds

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.INSUFFICIENT_FUNDS.Code)
	require.Empty(t, f.relayer.relayed)
}

func TestClaimIncompleteSignature(t *testing.T) {
	f := newFixture(t)
	f.wallet.signCompleted = false

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.INCOMPLETE_SIGNATURE.Code)

	// A partially signed transaction must never reach the wallet history,
	// the network or the result slot.
	require.Empty(t, f.wallet.saved)
	require.Empty(t, f.relayer.relayed)
	require.Nil(t, f.session.slot)
}

func TestClaimRelayRejected(t *testing.T) {
	f := newFixture(t)
	f.relayer.accept = false

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.RELAY_FAILURE.Code)
	require.Nil(t, f.session.slot)
}

func TestClaimAttemptStoreDownFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.attempts.addErr = fmt.Errorf("connection refused")
	f.attempts.countErr = fmt.Errorf("connection refused")

	tx, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	require.NoError(t, err)
	require.NotNil(t, tx)
}

func TestClaimAddressStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.claims.claimErr = fmt.Errorf("connection refused")

	_, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	requireErrorCode(t, err, errors.STORAGE_UNAVAILABLE.Code)
	require.Empty(t, f.relayer.relayed)
}

func TestTakeResult(t *testing.T) {
	f := newFixture(t)

	tx, err := f.svc.TakeResult(context.Background())
	require.NoError(t, err)
	require.Nil(t, tx)
	require.Zero(t, f.wallet.rebuilds)

	sent, err := f.svc.Claim(context.Background(), newRequest(testAddress, testClient, true))
	require.NoError(t, err)

	tx, err = f.svc.TakeResult(context.Background())
	require.NoError(t, err)
	require.Same(t, sent, tx)
	require.Equal(t, 1, f.wallet.rebuilds)

	// The slot is consumed, a second read comes back empty.
	tx, err = f.svc.TakeResult(context.Background())
	require.NoError(t, err)
	require.Nil(t, tx)
	require.Equal(t, 1, f.wallet.rebuilds)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	f.wallet.height = 1200
	f.wallet.walletHeight = 1199
	f.wallet.balances[domain.AssetPrimary] = domain.Fixed8FromInt(50)
	f.wallet.balances[domain.AssetSecondary] = domain.Fixed8FromInt(100000)

	status, err := f.svc.GetStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1200), status.Height)
	require.Equal(t, uint32(1199), status.WalletHeight)
	require.Equal(t, domain.Fixed8FromInt(testDripPrimary), status.DripPrimary)
	require.True(t, status.LowFunds())
}

func requireErrorCode(t *testing.T, err error, code uint16) {
	t.Helper()
	require.Error(t, err)
	typedErr, ok := err.(errors.Error)
	require.True(t, ok, "expected typed error, got %v", err)
	require.Equal(t, code, typedErr.Code())
}

func newRequest(address, client string, agreed bool) domain.ClaimRequest {
	return domain.NewClaimRequest(address, client, agreed)
}

type fixture struct {
	svc      Service
	wallet   *mockWallet
	builder  *mockBuilder
	relayer  *mockRelayer
	claims   *inMemoryClaimRepo
	attempts *inMemoryAttemptRepo
	session  *mockSessionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wallet := newMockWallet()
	builder := &mockBuilder{}
	relayer := &mockRelayer{accept: true}
	claims := &inMemoryClaimRepo{claims: make(map[string]struct{})}
	attempts := &inMemoryAttemptRepo{}
	session := &mockSessionStore{}

	svc := NewService(
		wallet, builder, relayer,
		&mockRepoManager{claims: claims, attempts: attempts},
		session, &mockScheduler{},
		domain.Fixed8FromInt(testDripPrimary), domain.Fixed8FromInt(testDripSecondary),
		maxAttempts, 100*time.Millisecond, 100*time.Millisecond,
	)

	return &fixture{
		svc:      svc,
		wallet:   wallet,
		builder:  builder,
		relayer:  relayer,
		claims:   claims,
		attempts: attempts,
		session:  session,
	}
}

type mockWallet struct {
	mu            sync.Mutex
	balances      map[domain.AssetKind]domain.Fixed8
	height        uint32
	walletHeight  uint32
	signCompleted bool
	saved         []string
	rebuilds      int
}

func newMockWallet() *mockWallet {
	return &mockWallet{
		balances: map[domain.AssetKind]domain.Fixed8{
			domain.AssetPrimary:   domain.Fixed8FromInt(100000),
			domain.AssetSecondary: domain.Fixed8FromInt(2000000),
		},
		signCompleted: true,
	}
}

func (m *mockWallet) Open(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockWallet) Balance(_ context.Context, asset domain.AssetKind) (domain.Fixed8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset], nil
}

func (m *mockWallet) Height(_ context.Context) (uint32, error) {
	return m.height, nil
}

func (m *mockWallet) WalletHeight(_ context.Context) (uint32, error) {
	return m.walletHeight, nil
}

func (m *mockWallet) ResolveAddress(_ context.Context, addr string) (domain.Identity, error) {
	return domain.Identity("hash:" + addr), nil
}

func (m *mockWallet) FundTransaction(_ context.Context, tx *domain.Transaction) error {
	tx.ID = fmt.Sprintf("tx-%s", tx.Outputs[0].To)
	return nil
}

func (m *mockWallet) Sign(
	_ context.Context, tx *domain.Transaction,
) (*ports.SigningContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.signCompleted {
		return &ports.SigningContext{}, nil
	}
	return &ports.SigningContext{
		Completed: true,
		Scripts:   [][]byte{{0xab, 0xcd}},
		Raw:       []byte("raw:" + tx.ID),
	}, nil
}

func (m *mockWallet) SaveTransaction(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, tx.ID)
	return nil
}

func (m *mockWallet) ProcessBlocks(_ context.Context) error {
	return nil
}

func (m *mockWallet) Rebuild(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	return nil
}

func (m *mockWallet) Close() {}

type mockBuilder struct {
	err error
}

func (m *mockBuilder) Build(
	_ context.Context, destination domain.Identity,
) (*domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Transaction{
		ID: fmt.Sprintf("tx-%s", destination),
		Outputs: []domain.TransferOutput{
			{Asset: domain.AssetSecondary, Amount: domain.Fixed8FromInt(testDripSecondary), To: destination},
			{Asset: domain.AssetPrimary, Amount: domain.Fixed8FromInt(testDripPrimary), To: destination},
		},
	}, nil
}

type mockRelayer struct {
	mu      sync.Mutex
	accept  bool
	relayed []string
}

func (m *mockRelayer) Relay(_ context.Context, tx *domain.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accept {
		return false, nil
	}
	m.relayed = append(m.relayed, tx.ID)
	return true, nil
}

func (m *mockRelayer) PersistBlocks(_ context.Context) error {
	return nil
}

func (m *mockRelayer) Close() {}

type inMemoryClaimRepo struct {
	mu       sync.Mutex
	claims   map[string]struct{}
	claimErr error
}

func (r *inMemoryClaimRepo) ClaimForDay(
	_ context.Context, address, day string,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	key := address + "/" + day
	if _, ok := r.claims[key]; ok {
		return false, nil
	}
	r.claims[key] = struct{}{}
	return true, nil
}

func (r *inMemoryClaimRepo) CountForDay(_ context.Context, day string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for key := range r.claims {
		if key[len(key)-len(day):] == day {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryClaimRepo) Close() {}

type inMemoryAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.ClientAttempt
	addErr   error
	countErr error
}

func (r *inMemoryAttemptRepo) Add(_ context.Context, attempt domain.ClientAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *inMemoryAttemptRepo) CountForDay(
	_ context.Context, client, day string,
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	var count int64
	for _, a := range r.attempts {
		if a.Client == client && a.Day == day {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryAttemptRepo) Close() {}

type mockRepoManager struct {
	claims   *inMemoryClaimRepo
	attempts *inMemoryAttemptRepo
}

func (m *mockRepoManager) AddressClaims() domain.AddressClaimRepository {
	return m.claims
}

func (m *mockRepoManager) ClientAttempts() domain.ClientAttemptRepository {
	return m.attempts
}

func (m *mockRepoManager) Close() {}

type mockSessionStore struct {
	mu   sync.Mutex
	slot *domain.Transaction
}

func (m *mockSessionStore) Set(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot = tx
	return nil
}

func (m *mockSessionStore) TakeAndClear(_ context.Context) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := m.slot
	m.slot = nil
	return tx, nil
}

func (m *mockSessionStore) Close() {}

type mockScheduler struct{}

func (m *mockScheduler) Start() {}

func (m *mockScheduler) Stop() {}

func (m *mockScheduler) ScheduleTaskEvery(_ time.Duration, _ func()) error {
	return nil
}
