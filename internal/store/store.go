package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"fieldbox/internal/model"

	"go.uber.org/zap"
)

// Collection names used as snapshot keys in durable storage.
const (
	CollectionRequests    = "maintenance_requests"
	CollectionTechnicians = "technicians"
	CollectionUsers       = "users"
	CollectionReviews     = "reviews"
	CollectionRentals     = "rentals"
)

var (
	// ErrNotFound is returned when a looked-up entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoSnapshot is returned by a Snapshotter when a collection has
	// no stored snapshot yet.
	ErrNoSnapshot = errors.New("no snapshot")
)

// Snapshotter persists full-collection snapshots keyed by collection name.
type Snapshotter interface {
	Save(ctx context.Context, collection string, data []byte) error
	Load(ctx context.Context, collection string) ([]byte, error)
}

// Store holds all entity collections in memory behind a single mutex.
// Every mutation writes a full snapshot of the touched collection through
// the Snapshotter. Memory is the source of truth; a failed snapshot write
// is logged and does not fail the mutation.
type Store struct {
	mu   sync.RWMutex
	snap Snapshotter
	log  *zap.Logger

	requests    map[string]*model.Request
	technicians map[string]*model.Technician
	users       map[string]*model.User
	reviews     map[string]*model.Review
	rentals     map[string]*model.Rental
}

func New(snap Snapshotter, log *zap.Logger) *Store {
	return &Store{
		snap:        snap,
		log:         log,
		requests:    make(map[string]*model.Request),
		technicians: make(map[string]*model.Technician),
		users:       make(map[string]*model.User),
		reviews:     make(map[string]*model.Review),
		rentals:     make(map[string]*model.Rental),
	}
}

// Load restores all collections from stored snapshots. Collections missing
// from durable storage fall back to seed defaults, so new collections added
// after a deployment start populated.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadCollection(ctx, s.snap, CollectionRequests, &s.requests, nil); err != nil {
		return err
	}
	if err := loadCollection(ctx, s.snap, CollectionTechnicians, &s.technicians, seedTechnicians); err != nil {
		return err
	}
	if err := loadCollection(ctx, s.snap, CollectionUsers, &s.users, nil); err != nil {
		return err
	}
	if err := loadCollection(ctx, s.snap, CollectionReviews, &s.reviews, nil); err != nil {
		return err
	}
	if err := loadCollection(ctx, s.snap, CollectionRentals, &s.rentals, nil); err != nil {
		return err
	}

	s.log.Info("store loaded",
		zap.Int("requests", len(s.requests)),
		zap.Int("technicians", len(s.technicians)),
		zap.Int("users", len(s.users)))
	return nil
}

func loadCollection[T any](ctx context.Context, snap Snapshotter, name string, dst *map[string]*T, seed func() map[string]*T) error {
	data, err := snap.Load(ctx, name)
	if errors.Is(err, ErrNoSnapshot) {
		if seed != nil {
			*dst = seed()
		}
		return nil
	}
	if err != nil {
		return err
	}
	m := make(map[string]*T)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*dst = m
	return nil
}

// persist snapshots one collection. Callers must hold the write lock.
func (s *Store) persist(ctx context.Context, name string, coll interface{}) {
	data, err := json.Marshal(coll)
	if err != nil {
		s.log.Error("failed to marshal collection", zap.String("collection", name), zap.Error(err))
		return
	}
	if err := s.snap.Save(ctx, name, data); err != nil {
		s.log.Error("failed to persist collection", zap.String("collection", name), zap.Error(err))
	}
}

// Requests

func (s *Store) PutRequest(ctx context.Context, r *model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	s.persist(ctx, CollectionRequests, s.requests)
}

func (s *Store) GetRequest(id string) (*model.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// UpdateRequest applies fn to the stored request under the write lock and
// persists the collection. If fn returns an error nothing is mutated or
// persisted; fn operates on a scratch copy that only replaces the stored
// entity on success.
func (s *Store) UpdateRequest(ctx context.Context, id string, fn func(*model.Request) error) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.requests[id] = &cp
	s.persist(ctx, CollectionRequests, s.requests)
	out := cp
	return &out, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return false
	}
	delete(s.requests, id)
	s.persist(ctx, CollectionRequests, s.requests)
	return true
}

func (s *Store) ListRequests() []*model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Request, 0, len(s.requests))
	for _, r := range s.requests {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// MarkRequestPointsAwarded flips pointsAwarded false->true. Returns false
// with a nil error when the flag was already set, so a duplicate trigger is
// a no-op rather than a double award.
func (s *Store) MarkRequestPointsAwarded(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.PointsAwarded {
		return false, nil
	}
	r.PointsAwarded = true
	s.persist(ctx, CollectionRequests, s.requests)
	return true, nil
}

// Technicians

func (s *Store) PutTechnician(ctx context.Context, t *model.Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.technicians[t.ID] = &cp
	s.persist(ctx, CollectionTechnicians, s.technicians)
}

func (s *Store) GetTechnician(id string) (*model.Technician, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.technicians[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (s *Store) ListTechnicians() []*model.Technician {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (s *Store) SetTechnicianAvailability(ctx context.Context, id string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.technicians[id]
	if !ok {
		return ErrNotFound
	}
	t.IsAvailable = available
	s.persist(ctx, CollectionTechnicians, s.technicians)
	return nil
}

// Users

func (s *Store) PutUser(ctx context.Context, u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	s.persist(ctx, CollectionUsers, s.users)
}

func (s *Store) GetUser(id string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *Store) FindUserByReferralCode(code string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ReferralCode != "" && u.ReferralCode == code {
			cp := *u
			return &cp, true
		}
	}
	return nil, false
}

// AddUserPoints increments a user's balance and returns the new balance.
func (s *Store) AddUserPoints(ctx context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.Points += delta
	s.persist(ctx, CollectionUsers, s.users)
	return u.Points, nil
}

// MarkUserReferralAwarded flips the referral award flag on the user that
// consumed a referral code. Same contract as MarkRequestPointsAwarded.
func (s *Store) MarkUserReferralAwarded(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if u.ReferralAwarded {
		return false, nil
	}
	u.ReferralAwarded = true
	s.persist(ctx, CollectionUsers, s.users)
	return true, nil
}

// Reviews

func (s *Store) PutReview(ctx context.Context, r *model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reviews[r.ID] = &cp
	s.persist(ctx, CollectionReviews, s.reviews)
}

func (s *Store) GetReview(id string) (*model.Review, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (s *Store) MarkReviewPointsAwarded(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.PointsAwarded {
		return false, nil
	}
	r.PointsAwarded = true
	s.persist(ctx, CollectionReviews, s.reviews)
	return true, nil
}

// Rentals

func (s *Store) PutRental(ctx context.Context, r *model.Rental) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rentals[r.ID] = &cp
	s.persist(ctx, CollectionRentals, s.rentals)
}

func (s *Store) GetRental(id string) (*model.Rental, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rentals[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (s *Store) MarkRentalPointsAwarded(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rentals[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.PointsAwarded {
		return false, nil
	}
	r.PointsAwarded = true
	s.persist(ctx, CollectionRentals, s.rentals)
	return true, nil
}
