package application

import (
	"context"
	"time"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
	"github.com/cityofzion/faucetd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Start() error
	Stop()
	// Claim runs the disbursement workflow for a single request. On success
	// the relayed transaction is returned and stored in the session store for
	// the result view. All failures are typed errors.Error values.
	Claim(ctx context.Context, req domain.ClaimRequest) (*domain.Transaction, error)
	GetStatus(ctx context.Context) (*Status, error)
	// TakeResult consumes the pending disbursement result, if any. The slot
	// is emptied atomically; a second call before another successful claim
	// returns nil.
	TakeResult(ctx context.Context) (*domain.Transaction, error)
}

type service struct {
	wallet      ports.WalletService
	builder     ports.TxBuilder
	relayer     ports.Relayer
	repoManager ports.RepoManager
	session     ports.SessionStore
	scheduler   ports.SchedulerService

	dripPrimary        domain.Fixed8
	dripSecondary      domain.Fixed8
	maxClientAttempts  int64
	walletSyncInterval time.Duration
	persistInterval    time.Duration
}

func NewService(
	wallet ports.WalletService,
	builder ports.TxBuilder,
	relayer ports.Relayer,
	repoManager ports.RepoManager,
	session ports.SessionStore,
	scheduler ports.SchedulerService,
	dripPrimary, dripSecondary domain.Fixed8,
	maxClientAttempts int64,
	walletSyncInterval, persistInterval time.Duration,
) Service {
	return &service{
		wallet:             wallet,
		builder:            builder,
		relayer:            relayer,
		repoManager:        repoManager,
		session:            session,
		scheduler:          scheduler,
		dripPrimary:        dripPrimary,
		dripSecondary:      dripSecondary,
		maxClientAttempts:  maxClientAttempts,
		walletSyncInterval: walletSyncInterval,
		persistInterval:    persistInterval,
	}
}

func (s *service) Start() error {
	if err := s.scheduler.ScheduleTaskEvery(s.walletSyncInterval, s.processBlocks); err != nil {
		return err
	}
	if err := s.scheduler.ScheduleTaskEvery(s.persistInterval, s.persistBlocks); err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) Claim(
	ctx context.Context, req domain.ClaimRequest,
) (*domain.Transaction, error) {
	logger := log.WithField("request_id", req.RequestID).WithField("client", req.Client)

	day := domain.Day(req.SubmittedAt)

	// Every attempt counts against the client quota, even those rejected
	// below. A storage failure here must not block the workflow.
	recorded := true
	if err := s.repoManager.ClientAttempts().Add(ctx, domain.ClientAttempt{
		Client: req.Client,
		Day:    day,
		At:     req.SubmittedAt,
	}); err != nil {
		recorded = false
		errors.STORAGE_UNAVAILABLE.Wrap(err).Log().
			Warn("failed to record client attempt")
	}

	attempts, err := s.repoManager.ClientAttempts().CountForDay(ctx, req.Client, day)
	if err != nil {
		attempts = 0
		errors.STORAGE_UNAVAILABLE.Wrap(err).Log().
			Warn("failed to count client attempts")
	}
	prior := attempts
	if recorded && prior > 0 {
		prior--
	}

	if !req.Agreed {
		return nil, errors.INVALID_INPUT.New("user did not agree to the guidelines").
			WithMetadata(errors.InputMetadata{Field: "agreement"})
	}
	if len(req.Address) <= 0 {
		return nil, errors.INVALID_INPUT.New("missing destination address").
			WithMetadata(errors.InputMetadata{Field: "address"})
	}

	if prior > s.maxClientAttempts {
		return nil, errors.RATE_LIMITED.New("client exhausted the daily attempt quota").
			WithMetadata(errors.RateLimitMetadata{By: "client", Client: req.Client})
	}

	// Single atomic insert-if-absent: two concurrent claims for the same
	// address and day yield exactly one created=true.
	created, err := s.repoManager.AddressClaims().ClaimForDay(ctx, req.Address, day)
	if err != nil {
		return nil, errors.STORAGE_UNAVAILABLE.Wrap(err)
	}
	if !created {
		return nil, errors.RATE_LIMITED.New("address already claimed today").
			WithMetadata(errors.RateLimitMetadata{By: "address", Addr: req.Address})
	}

	destination, err := s.wallet.ResolveAddress(ctx, req.Address)
	if err != nil {
		return nil, errors.INVALID_INPUT.Wrap(err).
			WithMetadata(errors.InputMetadata{Field: "address", Addr: req.Address})
	}

	tx, err := s.builder.Build(ctx, destination)
	if err != nil {
		if err == ports.ErrInsufficientFunds {
			return nil, errors.INSUFFICIENT_FUNDS.Wrap(err)
		}
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}

	signingCtx, err := s.wallet.Sign(ctx, tx)
	if err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}
	if !signingCtx.Completed {
		// The transaction is discarded, never relayed, never stored.
		return nil, errors.INCOMPLETE_SIGNATURE.New("signature threshold not met").
			WithMetadata(errors.TxMetadata{Txid: tx.ID})
	}
	tx.Scripts = signingCtx.Scripts
	tx.Raw = signingCtx.Raw

	if err := s.wallet.SaveTransaction(ctx, tx); err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}

	relayed, err := s.relayer.Relay(ctx, tx)
	if err != nil {
		return nil, errors.RELAY_FAILURE.Wrap(err).
			WithMetadata(errors.TxMetadata{Txid: tx.ID})
	}
	if !relayed {
		return nil, errors.RELAY_FAILURE.New("transaction rejected by network peers").
			WithMetadata(errors.TxMetadata{Txid: tx.ID})
	}

	if err := s.session.Set(ctx, tx); err != nil {
		// The transfer went out, the result page just won't show it.
		logger.WithError(err).Warn("failed to store disbursement result")
	}

	logger.WithField("txid", tx.ID).WithField("address", req.Address).
		Info("disbursement relayed")
	return tx, nil
}

func (s *service) GetStatus(ctx context.Context) (*Status, error) {
	primary, err := s.wallet.Balance(ctx, domain.AssetPrimary)
	if err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}
	secondary, err := s.wallet.Balance(ctx, domain.AssetSecondary)
	if err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}
	height, err := s.wallet.Height(ctx)
	if err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}
	walletHeight, err := s.wallet.WalletHeight(ctx)
	if err != nil {
		return nil, errors.WALLET_UNAVAILABLE.Wrap(err)
	}

	return &Status{
		Height:        height,
		WalletHeight:  walletHeight,
		Primary:       primary,
		Secondary:     secondary,
		DripPrimary:   s.dripPrimary,
		DripSecondary: s.dripSecondary,
	}, nil
}

func (s *service) TakeResult(ctx context.Context) (*domain.Transaction, error) {
	tx, err := s.session.TakeAndClear(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if tx == nil {
		return nil, nil
	}

	// Refresh the wallet's index so the pending spend shows up in balances.
	if err := s.wallet.Rebuild(ctx); err != nil {
		log.WithError(err).Warn("failed to rebuild wallet after disbursement")
	}
	return tx, nil
}

func (s *service) processBlocks() {
	if err := s.wallet.ProcessBlocks(context.Background()); err != nil {
		log.WithError(err).Debug("wallet block ingestion tick failed")
	}
}

func (s *service) persistBlocks() {
	if err := s.relayer.PersistBlocks(context.Background()); err != nil {
		log.WithError(err).Debug("ledger persistence tick failed")
	}
}
