package service

import (
	"context"
	"strings"
	"time"

	"fieldbox/internal/model"

	"fieldbox/internal/store"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// UserService owns the user store boundary plus the review/rental records
// that feed the rewards ledger.
type UserService struct {
	store   *store.Store
	rewards *RewardsService
	log     *zap.Logger
}

func NewUserService(st *store.Store, rewards *RewardsService, log *zap.Logger) *UserService {
	return &UserService{store: st, rewards: rewards, log: log}
}

type CreateUserInput struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        *string `json:"email,omitempty"`
	ReferralCode string  `json:"referralCode,omitempty"`
}

// CreateUser registers a user. When a valid referral code is consumed the
// referrer's points are credited automatically, guarded by the new user's
// referral flag so re-processing the signup can never credit twice.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, newValidationError("name", "must not be empty")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, newValidationError("phone", "must not be empty")
	}

	var referredBy *string
	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		referrer, ok := s.store.FindUserByReferralCode(code)
		if !ok {
			return nil, newValidationError("referralCode", "unknown referral code")
		}
		referredBy = &referrer.ID
	}

	id := ulid.Make().String()
	user := &model.User{
		ID:           id,
		Name:         input.Name,
		Phone:        input.Phone,
		Email:        input.Email,
		ReferralCode: "REF-" + id[len(id)-8:],
		ReferredBy:   referredBy,
		CreatedAt:    time.Now().UTC(),
	}
	s.store.PutUser(ctx, user)

	if referredBy != nil {
		if _, err := s.rewards.AwardReferralPoints(ctx, user.ID); err != nil {
			// The signup itself stands; the missed credit is logged for
			// operator follow-up.
			s.log.Error("referral award failed",
				zap.String("user_id", user.ID), zap.String("referrer_id", *referredBy), zap.Error(err))
		}
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, ok := s.store.GetUser(id)
	if !ok {
		return nil, newNotFoundError("user", id)
	}
	return u, nil
}

type CreateReviewInput struct {
	UserID    string `json:"userId"`
	RequestID string `json:"requestId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// CreateReview records a review submission so it can later be rewarded.
func (s *UserService) CreateReview(ctx context.Context, input CreateReviewInput) (*model.Review, error) {
	if _, ok := s.store.GetUser(input.UserID); !ok {
		return nil, newNotFoundError("user", input.UserID)
	}
	if _, ok := s.store.GetRequest(input.RequestID); !ok {
		return nil, newNotFoundError("request", input.RequestID)
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, newValidationError("rating", "must be between 1 and 5")
	}

	review := &model.Review{
		ID:        ulid.Make().String(),
		UserID:    input.UserID,
		RequestID: input.RequestID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: time.Now().UTC(),
	}
	s.store.PutReview(ctx, review)
	return review, nil
}

type CreateRentalInput struct {
	UserID     string `json:"userId"`
	PropertyID string `json:"propertyId"`
}

// CreateRental records a rental agreement awaiting signature.
func (s *UserService) CreateRental(ctx context.Context, input CreateRentalInput) (*model.Rental, error) {
	if _, ok := s.store.GetUser(input.UserID); !ok {
		return nil, newNotFoundError("user", input.UserID)
	}
	if strings.TrimSpace(input.PropertyID) == "" {
		return nil, newValidationError("propertyId", "must not be empty")
	}

	rental := &model.Rental{
		ID:         ulid.Make().String(),
		UserID:     input.UserID,
		PropertyID: input.PropertyID,
		CreatedAt:  time.Now().UTC(),
	}
	s.store.PutRental(ctx, rental)
	return rental, nil
}

// SignRental marks a rental agreement as signed, making it rewardable.
func (s *UserService) SignRental(ctx context.Context, id string) (*model.Rental, error) {
	rental, ok := s.store.GetRental(id)
	if !ok {
		return nil, newNotFoundError("rental", id)
	}
	if rental.SignedAt == nil {
		now := time.Now().UTC()
		rental.SignedAt = &now
		s.store.PutRental(ctx, rental)
	}
	return rental, nil
}
