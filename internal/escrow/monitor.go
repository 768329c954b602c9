package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	// coinDecimals is the number of decimals of Aptos coins (octas)
	coinDecimals = 8

	DefaultPollInterval = 5 * time.Minute

	startupInitialBackoff = 5 * time.Second
	startupMaxBackoff     = 5 * time.Minute
)

// BalanceReader is implemented by blockchain.NodeClient.
type BalanceReader interface {
	CoinBalance(ctx context.Context, address, coinType string) (uint64, error)
}

type Options struct {
	Address      string
	CoinType     string
	PollInterval time.Duration
	MinBalance   decimal.Decimal
}

// Monitor polls the escrow wallet balance and alerts admins once when it
// drops below the configured minimum. The alert re-arms when the balance
// recovers.
type Monitor struct {
	logger      *logger.Logger
	node        BalanceReader
	notificator models.NotificationService
	opts        Options

	status  *models.EscrowStatus
	alerted bool
	mu      sync.RWMutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(node BalanceReader, notificator models.NotificationService, opts Options, logger *logger.Logger) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		logger:      logger,
		node:        node,
		notificator: notificator,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Refresh reads the balance once and updates the cached status.
func (m *Monitor) Refresh(ctx context.Context) (*models.EscrowStatus, error) {
	octas, err := m.node.CoinBalance(ctx, m.opts.Address, m.opts.CoinType)
	if err != nil {
		return nil, fmt.Errorf("failed to read escrow balance: %w", err)
	}

	balance := decimal.NewFromBigInt(new(big.Int).SetUint64(octas), -coinDecimals)
	status := &models.EscrowStatus{
		Address:    m.opts.Address,
		CoinType:   m.opts.CoinType,
		Octas:      octas,
		Balance:    balance,
		MinBalance: m.opts.MinBalance,
		Low:        m.opts.MinBalance.IsPositive() && balance.LessThan(m.opts.MinBalance),
		UpdatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.status = status
	alert := status.Low && !m.alerted
	m.alerted = status.Low
	m.mu.Unlock()

	m.logger.Debug("Escrow balance updated", "address", m.opts.Address, "balance", balance.String(), "low", status.Low)
	if alert {
		m.logger.Warn("Escrow balance below minimum", "balance", balance.String(), "min", m.opts.MinBalance.String())
		if m.notificator != nil {
			m.notificator.SendNotification(ctx, &models.Notification{
				Kind:    models.NotificationEscrowLow,
				Wallet:  m.opts.Address,
				Subject: "Escrow balance is low",
				Message: fmt.Sprintf("Escrow balance is %s, below the minimum of %s. Top up the escrow wallet to keep claims funded.",
					balance.String(), m.opts.MinBalance.String()),
			})
		}
	}

	c := *status
	return &c, nil
}

// Status returns the cached status, or false when no balance was read yet.
func (m *Monitor) Status() (*models.EscrowStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return nil, false
	}
	c := *m.status
	return &c, true
}

// Start begins polling in the background. The first read is retried with
// exponential backoff until it succeeds or the monitor is stopped.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = startupInitialBackoff
		b.MaxInterval = startupMaxBackoff
		b.MaxElapsedTime = 0

		err := backoff.RetryNotify(func() error {
			_, err := m.Refresh(m.ctx)
			return err
		}, backoff.WithContext(b, m.ctx), func(err error, next time.Duration) {
			m.logger.Error("Failed to read escrow balance on startup, retrying...", "error", err, "retry_in", next)
		})
		if err != nil {
			m.logger.Info("Escrow monitor stopped during initial fetch")
			return
		}
		m.logger.Info("Loaded initial escrow balance", "address", m.opts.Address)

		ticker := time.NewTicker(m.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := m.Refresh(m.ctx); err != nil {
					m.logger.Error("Failed to refresh escrow balance", "error", err)
				}
			case <-m.ctx.Done():
				m.logger.Info("Escrow monitor periodic update stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	m.logger.Info("Stopping escrow monitor")
	m.cancel()
	m.wg.Wait()
	m.logger.Info("Escrow monitor stopped")
}
