package membership

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store and Transactor for tests. WithinTx
// serializes transactions with a single lock, which is a faithful-enough
// stand-in for the row-locking the Postgres store does.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	tiers         map[uuid.UUID]Tier
	plans         map[uuid.UUID]Plan
	memberships   map[uuid.UUID]Membership
	subscriptions map[uuid.UUID]Subscription
	follows       map[[2]uuid.UUID]Follow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiers:         make(map[uuid.UUID]Tier),
		plans:         make(map[uuid.UUID]Plan),
		memberships:   make(map[uuid.UUID]Membership),
		subscriptions: make(map[uuid.UUID]Subscription),
		follows:       make(map[[2]uuid.UUID]Follow),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *MemoryStore) CreateTier(ctx context.Context, tier *Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.ID] = *tier
	return nil
}

func (s *MemoryStore) GetTier(ctx context.Context, id uuid.UUID) (*Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[id]
	if !ok {
		return nil, ErrTierNotFound
	}
	return &t, nil
}

func (s *MemoryStore) CreatePlan(ctx context.Context, plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = *plan
	return nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindPlan(ctx context.Context, tierID uuid.UUID, amountSubUnit int64, period Period, interval int) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.TierID == tierID && p.Amount.SubUnit() == amountSubUnit && p.Period == period && p.Interval == interval {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (s *MemoryStore) CreateMembership(ctx context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.CreatorID == m.CreatorID && existing.FanID == m.FanID {
			return ErrMembershipExists
		}
	}
	s.memberships[m.ID] = cloneMembership(*m)
	return nil
}

func (s *MemoryStore) UpdateMembership(ctx context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; !ok {
		return ErrMembershipNotFound
	}
	s.memberships[m.ID] = cloneMembership(*m)
	return nil
}

func (s *MemoryStore) GetMembership(ctx context.Context, id uuid.UUID) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, ErrMembershipNotFound
	}
	cp := cloneMembership(m)
	return &cp, nil
}

func (s *MemoryStore) GetMembershipForUpdate(ctx context.Context, id uuid.UUID) (*Membership, error) {
	return s.GetMembership(ctx, id)
}

func (s *MemoryStore) FindMembership(ctx context.Context, creatorID, fanID uuid.UUID) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.CreatorID == creatorID && m.FanID == fanID {
			cp := cloneMembership(m)
			return &cp, nil
		}
	}
	return nil, ErrMembershipNotFound
}

func (s *MemoryStore) ListActiveMembershipIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range s.memberships {
		if m.IsActive != nil && *m.IsActive {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.GetSubscription(ctx, id)
}

func (s *MemoryStore) FindCreatedSubscriptionForUpdate(ctx context.Context, externalID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.ExternalID == externalID && sub.Status == StatusCreated {
			cp := sub
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) FindSubscriptionForUpdate(ctx context.Context, externalID, planExternalID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		plan, ok := s.plans[sub.PlanID]
		if !ok {
			continue
		}
		if sub.ExternalID == externalID && plan.ExternalID == planExternalID {
			cp := sub
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) UpsertFollow(ctx context.Context, creatorID, fanID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uuid.UUID{creatorID, fanID}
	if _, ok := s.follows[key]; !ok {
		s.follows[key] = Follow{CreatorID: creatorID, FanID: fanID}
	}
	return nil
}

// Follows returns a snapshot of follow relationships, for assertions.
func (s *MemoryStore) Follows() []Follow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Follow, 0, len(s.follows))
	for _, f := range s.follows {
		out = append(out, f)
	}
	return out
}

func cloneMembership(m Membership) Membership {
	if m.TierID != nil {
		v := *m.TierID
		m.TierID = &v
	}
	if m.IsActive != nil {
		v := *m.IsActive
		m.IsActive = &v
	}
	if m.ActiveSubscriptionID != nil {
		v := *m.ActiveSubscriptionID
		m.ActiveSubscriptionID = &v
	}
	if m.ScheduledSubscriptionID != nil {
		v := *m.ScheduledSubscriptionID
		m.ScheduledSubscriptionID = &v
	}
	return m
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Transactor = (*MemoryStore)(nil)
)
