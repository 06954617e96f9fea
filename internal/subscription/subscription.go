// Package subscription reports the account's tier. Premium lapses on its
// own when ExpiresAt passes; nothing here ever shortens a paid period.
package subscription

import (
	"context"
	"time"

	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/syncer"
)

// Effective is the tier in force at now.
func Effective(sub models.Subscription, now time.Time) models.Tier {
	if sub.Tier != models.TierPremium {
		return models.TierFree
	}
	if sub.ExpiresAt != nil && !now.Before(*sub.ExpiresAt) {
		return models.TierFree
	}
	return models.TierPremium
}

type Status struct {
	Stored    models.Tier
	Effective models.Tier
	ExpiresAt *time.Time
	// DaysLeft is the whole days until expiry; -1 when premium never expires
	// or the tier is free.
	DaysLeft int
}

func StatusOf(sub models.Subscription, now time.Time) Status {
	st := Status{Stored: sub.Tier, Effective: Effective(sub, now), ExpiresAt: sub.ExpiresAt, DaysLeft: -1}
	if st.Effective == models.TierPremium && sub.ExpiresAt != nil {
		st.DaysLeft = int(sub.ExpiresAt.Sub(now).Hours() / 24)
	}
	return st
}

type Service struct {
	store *state.Store
	coord *syncer.Coordinator
	now   func() time.Time
}

func New(store *state.Store, coord *syncer.Coordinator, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, coord: coord, now: now}
}

func (s *Service) Status() (Status, error) {
	t, err := s.store.Snapshot()
	if err != nil {
		return Status{}, err
	}
	return StatusOf(t.Subscription, s.now()), nil
}

// Refresh downgrades a lapsed premium subscription to free. It returns a
// nil Pending when nothing changed.
func (s *Service) Refresh(ctx context.Context) (*syncer.Pending, error) {
	st, err := s.Status()
	if err != nil {
		return nil, err
	}
	if st.Stored != models.TierPremium || st.Effective == models.TierPremium {
		return nil, nil
	}

	now := s.now()
	p, err := s.coord.Submit(ctx, syncer.Mutation{
		Name: "expire subscription",
		Apply: func(t *state.Tree) error {
			if Effective(t.Subscription, now) == models.TierPremium {
				return nil
			}
			t.Subscription = models.Subscription{Tier: models.TierFree, UpdatedAt: now}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Premium subscription expired", "expired_at", st.ExpiresAt)
	return p, nil
}

// Cancel deliberately changes nothing. A cancelled subscription keeps its
// premium tier until ExpiresAt, when Refresh downgrades it; billing is
// handled outside this program.
func (s *Service) Cancel(ctx context.Context) error {
	st, err := s.Status()
	if err != nil {
		return err
	}
	logger.Info("Subscription cancellation requested; tier unchanged until expiry", "tier", st.Effective, "expires_at", st.ExpiresAt)
	return nil
}
