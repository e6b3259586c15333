package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store and Transactor for tests.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	payments       map[uuid.UUID]Payment
	payouts        map[uuid.UUID]Payout
	donations      map[uuid.UUID]Donation
	bankAccounts   map[uuid.UUID]BankAccount
	payoutsEnabled map[uuid.UUID]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:       make(map[uuid.UUID]Payment),
		payouts:        make(map[uuid.UUID]Payout),
		donations:      make(map[uuid.UUID]Donation),
		bankAccounts:   make(map[uuid.UUID]BankAccount),
		payoutsEnabled: make(map[uuid.UUID]bool),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *MemoryStore) CreatePayment(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.ExternalID == p.ExternalID {
			return ErrPaymentAlreadyProcessed
		}
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) FindPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ExternalID == externalID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *MemoryStore) CreatePayout(ctx context.Context, p *Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payouts {
		if existing.PaymentID == p.PaymentID {
			return fmt.Errorf("payout already exists for payment %s", p.PaymentID)
		}
	}
	s.payouts[p.ID] = *p
	return nil
}

func (s *MemoryStore) FindPayoutByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payouts {
		if p.PaymentID == paymentID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPayoutNotFound
}

func (s *MemoryStore) UpdatePayoutStatusByTransferIDs(ctx context.Context, transferIDs []string, status PayoutStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id, p := range s.payouts {
		for _, tid := range transferIDs {
			if p.ExternalTransferID != "" && p.ExternalTransferID == tid {
				p.Status = status
				s.payouts[id] = p
				n++
				break
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateDonation(ctx context.Context, d *Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.ID] = *d
	return nil
}

func (s *MemoryStore) GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error) {
	return s.GetDonationForUpdate(ctx, id)
}

func (s *MemoryStore) GetDonationForUpdate(ctx context.Context, id uuid.UUID) (*Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, ErrDonationNotFound
	}
	return &d, nil
}

func (s *MemoryStore) FindDonationByOrderIDForUpdate(ctx context.Context, orderExternalID string) (*Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.OrderExternalID == orderExternalID {
			cp := d
			return &cp, nil
		}
	}
	return nil, ErrDonationNotFound
}

func (s *MemoryStore) UpdateDonation(ctx context.Context, d *Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donations[d.ID]; !ok {
		return ErrDonationNotFound
	}
	s.donations[d.ID] = *d
	return nil
}

func (s *MemoryStore) CreateBankAccount(ctx context.Context, b *BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bankAccounts {
		if existing.CreatorID == b.CreatorID {
			return ErrBankAccountExists
		}
	}
	s.bankAccounts[b.ID] = *b
	return nil
}

func (s *MemoryStore) UpdateBankAccount(ctx context.Context, b *BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bankAccounts[b.ID]; !ok {
		return ErrBankAccountNotFound
	}
	s.bankAccounts[b.ID] = *b
	return nil
}

func (s *MemoryStore) GetBankAccountByCreator(ctx context.Context, creatorID uuid.UUID) (*BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bankAccounts {
		if b.CreatorID == creatorID {
			cp := b
			return &cp, nil
		}
	}
	return nil, ErrBankAccountNotFound
}

func (s *MemoryStore) SetCreatorPayoutsEnabled(ctx context.Context, creatorID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payoutsEnabled[creatorID] = enabled
	return nil
}

// PayoutsEnabled reports the creator's onboarding flag, for assertions.
func (s *MemoryStore) PayoutsEnabled(creatorID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payoutsEnabled[creatorID]
}

// Payments returns a snapshot of the payment ledger, for assertions.
func (s *MemoryStore) Payments() []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

// Payouts returns a snapshot of the payouts, for assertions.
func (s *MemoryStore) Payouts() []Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Payout, 0, len(s.payouts))
	for _, p := range s.payouts {
		out = append(out, p)
	}
	return out
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Transactor = (*MemoryStore)(nil)
)
