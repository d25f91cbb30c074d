package service

import (
	"context"
	"errors"

	"fieldbox/internal/model"
	"fieldbox/internal/store"

	"go.uber.org/zap"
)

// ErrRewardsDisabled is returned by manual award triggers while the global
// rewards switch is off. The flags on source entities are untouched.
var ErrRewardsDisabled = errors.New("rewards are disabled")

// RewardsService awards loyalty points at most once per qualifying event.
// The idempotency flag lives on the source entity; its false->true flip is
// a compare-and-set inside the store, so a duplicate trigger can never
// increment a balance twice.
type RewardsService struct {
	store *store.Store
	cfg   model.PointsConfig
	bus   EventBus
	log   *zap.Logger
}

func NewRewardsService(st *store.Store, cfg model.PointsConfig, bus EventBus, log *zap.Logger) *RewardsService {
	return &RewardsService{store: st, cfg: cfg, bus: bus, log: log}
}

// Config returns the session points configuration.
func (s *RewardsService) Config() model.PointsConfig {
	return s.cfg
}

// Enabled reports whether award affordances are exposed at all.
func (s *RewardsService) Enabled() bool {
	return s.cfg.Enabled
}

// AwardResult reports the outcome of an award trigger. Awarded is false
// when the entity had already been awarded and the call was a no-op.
type AwardResult struct {
	UserID  string `json:"userId"`
	Points  int    `json:"points"`
	Balance int    `json:"balance"`
	Awarded bool   `json:"awarded"`
}

// awardOnce is the single award primitive shared by every rewardable event
// kind: look up the user, flip the source entity's flag false->true, and
// only on a successful flip increment the balance. The flag is re-checked
// at the moment of award inside mark, never cached from an earlier read.
func (s *RewardsService) awardOnce(ctx context.Context, userID string, points int, mark func(context.Context) (bool, error)) (*AwardResult, error) {
	user, ok := s.store.GetUser(userID)
	if !ok {
		return nil, newNotFoundError("user", userID)
	}

	flipped, err := mark(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newNotFoundError("award source", "")
	}
	if err != nil {
		return nil, err
	}
	if !flipped {
		return &AwardResult{UserID: userID, Points: 0, Balance: user.Points, Awarded: false}, nil
	}

	balance, err := s.store.AddUserPoints(ctx, userID, points)
	if err != nil {
		return nil, newNotFoundError("user", userID)
	}

	_ = s.bus.PublishUser(userID, map[string]interface{}{
		"type":    "points.awarded",
		"userId":  userID,
		"points":  points,
		"balance": balance,
	})
	s.log.Info("points awarded",
		zap.String("user_id", userID), zap.Int("points", points), zap.Int("balance", balance))

	return &AwardResult{UserID: userID, Points: points, Balance: balance, Awarded: true}, nil
}

// AwardMaintenancePoints awards the configured points for a completed
// maintenance request. Triggering it on an already-awarded request is a
// guaranteed no-op.
func (s *RewardsService) AwardMaintenancePoints(ctx context.Context, requestID string) (*AwardResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrRewardsDisabled
	}
	req, ok := s.store.GetRequest(requestID)
	if !ok {
		return nil, newNotFoundError("request", requestID)
	}
	if req.Status != model.StatusCompleted {
		return nil, newInvariantViolation("award", "request is not completed")
	}
	if req.UserID == nil {
		return nil, newNotFoundError("user", "(request has no linked user)")
	}
	return s.awardOnce(ctx, *req.UserID, s.cfg.PerMaintenanceRequest, func(ctx context.Context) (bool, error) {
		return s.store.MarkRequestPointsAwarded(ctx, requestID)
	})
}

// AwardReviewPoints awards the configured points for a submitted review.
func (s *RewardsService) AwardReviewPoints(ctx context.Context, reviewID string) (*AwardResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrRewardsDisabled
	}
	review, ok := s.store.GetReview(reviewID)
	if !ok {
		return nil, newNotFoundError("review", reviewID)
	}
	return s.awardOnce(ctx, review.UserID, s.cfg.PerReview, func(ctx context.Context) (bool, error) {
		return s.store.MarkReviewPointsAwarded(ctx, reviewID)
	})
}

// AwardRentalPoints awards the configured points for a signed rental
// agreement.
func (s *RewardsService) AwardRentalPoints(ctx context.Context, rentalID string) (*AwardResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrRewardsDisabled
	}
	rental, ok := s.store.GetRental(rentalID)
	if !ok {
		return nil, newNotFoundError("rental", rentalID)
	}
	if rental.SignedAt == nil {
		return nil, newInvariantViolation("award", "rental agreement is not signed")
	}
	return s.awardOnce(ctx, rental.UserID, s.cfg.PerRental, func(ctx context.Context) (bool, error) {
		return s.store.MarkRentalPointsAwarded(ctx, rentalID)
	})
}

// AwardReferralPoints credits the referrer of a newly created user. This is
// the one automatic award path: it runs at user creation, outside the
// manual triggers, and is therefore not gated by the Enabled switch. The
// idempotency flag lives on the referral-consuming user.
func (s *RewardsService) AwardReferralPoints(ctx context.Context, newUserID string) (*AwardResult, error) {
	newUser, ok := s.store.GetUser(newUserID)
	if !ok {
		return nil, newNotFoundError("user", newUserID)
	}
	if newUser.ReferredBy == nil {
		return nil, newInvariantViolation("referral award", "user consumed no referral code")
	}
	return s.awardOnce(ctx, *newUser.ReferredBy, s.cfg.PerReferral, func(ctx context.Context) (bool, error) {
		return s.store.MarkUserReferralAwarded(ctx, newUserID)
	})
}
