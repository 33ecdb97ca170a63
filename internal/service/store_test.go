package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v82"

	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/repository"
)

var errStoreDown = errors.New("store is down")

// paymentAccount повторяет строку payment_accounts.
type paymentAccount struct {
	UserID            string
	ExternalAccountID *string
	Onboarded         bool
	ChargesEnabled    bool
	PayoutsEnabled    bool
	DetailsSubmitted  bool
}

// memStore: хранилище в памяти, повторяющее семантику PostgresRepository.
type memStore struct {
	mu sync.Mutex

	accounts map[string]*paymentAccount
	balances map[string]*model.BalanceCache
	listings map[string]map[string]model.ListingStatus
	offers   map[string]*model.Offer
	names    map[string]string
	events   map[string]string

	failUpdateFlags  bool
	failClear        bool
	failCancel       bool
	failSaveBalance  bool
	failSetOnboarded bool
	failNames        bool

	writes     int
	nameLookup int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*paymentAccount{},
		balances: map[string]*model.BalanceCache{},
		listings: map[string]map[string]model.ListingStatus{},
		offers:   map[string]*model.Offer{},
		names:    map[string]string{},
		events:   map[string]string{},
	}
}

func strPtr(s string) *string { return &s }

func (s *memStore) FindUserIDByExternalAccount(_ context.Context, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.accounts {
		if a.ExternalAccountID != nil && *a.ExternalAccountID == accountID {
			return id, nil
		}
	}
	return "", repository.ErrNotFound
}

func (s *memStore) UpdateAccountFlags(_ context.Context, userID string, flags model.AccountFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdateFlags {
		return errStoreDown
	}
	a, ok := s.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	s.writes++
	a.ChargesEnabled = flags.ChargesEnabled
	a.PayoutsEnabled = flags.PayoutsEnabled
	a.DetailsSubmitted = flags.DetailsSubmitted
	a.Onboarded = flags.Onboarded()
	return nil
}

func (s *memStore) ClearAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failClear {
		return errStoreDown
	}
	a, ok := s.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	s.writes++
	a.ExternalAccountID = strPtr("")
	a.Onboarded = false
	return nil
}

func (s *memStore) CancelActiveListings(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCancel {
		return 0, errStoreDown
	}
	var n int64
	for id, st := range s.listings[userID] {
		if st == model.ListingStatusActive {
			s.listings[userID][id] = model.ListingStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateBalanceFlags(_ context.Context, userID string, flags model.AccountFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return repository.ErrNotFound
	}
	b.PayoutsEnabled = flags.PayoutsEnabled
	b.DetailsSubmitted = flags.DetailsSubmitted
	return nil
}

func (s *memStore) ClearBalanceAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return repository.ErrNotFound
	}
	b.ExternalAccountID = nil
	b.PayoutsEnabled = false
	return nil
}

func (s *memStore) GetBalanceCache(_ context.Context, userID string) (*model.BalanceCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) RefreshBalanceCache(_ context.Context, accountID string, b model.BalanceCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSaveBalance {
		return errStoreDown
	}
	cur, ok := s.balances[b.UserID]
	if !ok || cur.ExternalAccountID == nil || *cur.ExternalAccountID != accountID {
		return repository.ErrNotFound
	}
	s.writes++
	cur.AvailableCents = b.AvailableCents
	cur.PendingCents = b.PendingCents
	cur.PayoutsEnabled = b.PayoutsEnabled
	cur.DetailsSubmitted = b.DetailsSubmitted
	cur.LastSyncedAt = b.LastSyncedAt
	return nil
}

func (s *memStore) SetOnboarded(_ context.Context, userID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSetOnboarded {
		return errStoreDown
	}
	a, ok := s.accounts[userID]
	if !ok || a.ExternalAccountID == nil || *a.ExternalAccountID != accountID {
		return repository.ErrNotFound
	}
	s.writes++
	a.Onboarded = true
	return nil
}

func (s *memStore) CreateOffer(_ context.Context, o model.NewOffer) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title, ok := s.events[o.EventID]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	offer := &model.Offer{
		ID:             o.ID,
		EventID:        o.EventID,
		EventTitle:     title,
		OrganizerID:    o.OrganizerID,
		RecipientEmail: o.RecipientEmail,
		PriceCents:     o.PriceCents,
		TicketMode:     o.TicketMode,
		Message:        o.Message,
		TicketTypeID:   o.TicketTypeID,
		Status:         model.OfferStatusPending,
		CreatedAt:      time.Now().Add(time.Duration(len(s.offers)) * time.Millisecond),
	}
	s.offers[o.ID] = offer
	cp := *offer
	return &cp, nil
}

func (s *memStore) GetOffer(_ context.Context, id string) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) ListPendingOffersForRecipient(_ context.Context, userID, email string) ([]model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Offer
	for _, o := range s.offers {
		if o.Status != model.OfferStatusPending {
			continue
		}
		byUser := o.RecipientUserID != nil && *o.RecipientUserID == userID
		if byUser || o.RecipientEmail == email {
			res = append(res, *o)
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (s *memStore) ListSentOffers(_ context.Context, organizerID string, eventID *string, limit, offset int) ([]model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []model.Offer
	for _, o := range s.offers {
		if o.OrganizerID != organizerID {
			continue
		}
		if eventID != nil && o.EventID != *eventID {
			continue
		}
		all = append(all, *o)
	}
	sortNewestFirst(all)

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memStore) TransitionOffer(_ context.Context, id string, to model.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok || o.Status != model.OfferStatusPending {
		return repository.ErrNotFound
	}
	o.Status = to
	return nil
}

func (s *memStore) GetDisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nameLookup++
	if s.failNames {
		return nil, errStoreDown
	}
	res := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			res[id] = name
		}
	}
	return res, nil
}

func sortNewestFirst(offers []model.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	args := m.Called(ctx, accountID)
	acc, _ := args.Get(0).(*stripe.Account)
	return acc, args.Error(1)
}

func (m *mockProcessor) GetBalance(ctx context.Context, accountID string) (*stripe.Balance, error) {
	args := m.Called(ctx, accountID)
	bal, _ := args.Get(0).(*stripe.Balance)
	return bal, args.Error(1)
}

type mockClaimer struct {
	mock.Mock
}

func (m *mockClaimer) ClaimFreeOffer(ctx context.Context, accessToken, offerID string, skipMintingFee bool) (map[string]any, error) {
	args := m.Called(ctx, accessToken, offerID, skipMintingFee)
	res, _ := args.Get(0).(map[string]any)
	return res, args.Error(1)
}
