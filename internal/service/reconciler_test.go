package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketpay/internal/model"
	"github.com/mmeshcher/ticketpay/internal/webhook"
)

const (
	sellerID  = "11111111-1111-1111-1111-111111111111"
	accountID = "acct_seller"

	// Проданные объявления помечает каталог, деавторизация их не трогает.
	listingSold model.ListingStatus = "sold"
)

func newEvent(t *testing.T, typ stripe.EventType, account string, object any) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)

	return &stripe.Event{
		ID:      "evt_" + string(typ),
		Type:    typ,
		Account: account,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func accountUpdated(t *testing.T, charges, payouts, details bool, metadata map[string]string) *stripe.Event {
	return newEvent(t, webhook.EventAccountUpdated, accountID, map[string]any{
		"id":                accountID,
		"charges_enabled":   charges,
		"payouts_enabled":   payouts,
		"details_submitted": details,
		"metadata":          metadata,
	})
}

func deauthorized(t *testing.T) *stripe.Event {
	return newEvent(t, webhook.EventAccountDeauthorized, accountID, map[string]any{
		"id":   "ca_platform",
		"name": "ticketpay",
	})
}

func seededStore() *memStore {
	s := newMemStore()
	s.accounts[sellerID] = &paymentAccount{
		UserID:            sellerID,
		ExternalAccountID: strPtr(accountID),
	}
	s.balances[sellerID] = &model.BalanceCache{
		UserID:            sellerID,
		ExternalAccountID: strPtr(accountID),
		AvailableCents:    900,
	}
	s.listings[sellerID] = map[string]model.ListingStatus{
		"l1": model.ListingStatusActive,
		"l2": model.ListingStatusActive,
		"l3": listingSold,
	}
	return s
}

func TestReconciler_AccountUpdatedOnboarding(t *testing.T) {
	tests := []struct {
		name                      string
		charges, payouts, details bool
		wantOnboarded             bool
	}{
		{name: "all enabled", charges: true, payouts: true, details: true, wantOnboarded: true},
		{name: "charges disabled", charges: false, payouts: true, details: true},
		{name: "payouts disabled", charges: true, payouts: false, details: true},
		{name: "details missing", charges: true, payouts: true, details: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			r := NewReconciler(store, zap.NewNop())

			outcome, err := r.Handle(context.Background(),
				accountUpdated(t, tt.charges, tt.payouts, tt.details, map[string]string{"user_id": sellerID}))
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, outcome)

			acc := store.accounts[sellerID]
			assert.Equal(t, tt.wantOnboarded, acc.Onboarded)
			assert.Equal(t, tt.charges, acc.ChargesEnabled)
			assert.Equal(t, tt.payouts, acc.PayoutsEnabled)
			assert.Equal(t, tt.details, acc.DetailsSubmitted)
			assert.Equal(t, acc.ChargesEnabled && acc.PayoutsEnabled && acc.DetailsSubmitted, acc.Onboarded)
			assert.Equal(t, tt.payouts, store.balances[sellerID].PayoutsEnabled)
		})
	}
}

func TestReconciler_AccountUpdatedResolvesByStoredAccount(t *testing.T) {
	store := seededStore()
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(), accountUpdated(t, true, true, true, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.True(t, store.accounts[sellerID].Onboarded)
}

func TestReconciler_AccountUpdatedUnknownUserSkipped(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(), accountUpdated(t, true, true, true, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, store.writes)

	outcome, err = r.Handle(context.Background(),
		accountUpdated(t, true, true, true, map[string]string{"user_id": "22222222-2222-2222-2222-222222222222"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestReconciler_StoreFailureIsAcknowledged(t *testing.T) {
	store := seededStore()
	store.failUpdateFlags = true
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(),
		accountUpdated(t, true, true, true, map[string]string{"user_id": sellerID}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStoreFailed, outcome)
}

func TestReconciler_Deauthorized(t *testing.T) {
	store := seededStore()
	store.accounts[sellerID].Onboarded = true
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(), deauthorized(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	acc := store.accounts[sellerID]
	require.NotNil(t, acc.ExternalAccountID)
	assert.Empty(t, *acc.ExternalAccountID)
	assert.False(t, acc.Onboarded)

	assert.Equal(t, model.ListingStatusCancelled, store.listings[sellerID]["l1"])
	assert.Equal(t, model.ListingStatusCancelled, store.listings[sellerID]["l2"])
	assert.Equal(t, listingSold, store.listings[sellerID]["l3"])

	assert.False(t, store.balances[sellerID].HasAccount())
}

func TestReconciler_DeauthorizedCascadeFailureKeepsAccountCleared(t *testing.T) {
	store := seededStore()
	store.accounts[sellerID].Onboarded = true
	store.failCancel = true
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(), deauthorized(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	acc := store.accounts[sellerID]
	assert.Empty(t, *acc.ExternalAccountID)
	assert.False(t, acc.Onboarded)
	assert.Equal(t, model.ListingStatusActive, store.listings[sellerID]["l1"])
}

func TestReconciler_Idempotent(t *testing.T) {
	events := map[string]func(t *testing.T) *stripe.Event{
		"account.updated": func(t *testing.T) *stripe.Event {
			return accountUpdated(t, true, false, true, map[string]string{"user_id": sellerID})
		},
		"account.application.deauthorized": deauthorized,
	}

	for name, mk := range events {
		t.Run(name, func(t *testing.T) {
			once := seededStore()
			twice := seededStore()

			r1 := NewReconciler(once, zap.NewNop())
			r2 := NewReconciler(twice, zap.NewNop())

			_, err := r1.Handle(context.Background(), mk(t))
			require.NoError(t, err)

			for i := 0; i < 2; i++ {
				_, err := r2.Handle(context.Background(), mk(t))
				require.NoError(t, err)
			}

			assert.Equal(t, snapshot(once), snapshot(twice))
		})
	}
}

func TestReconciler_UnknownEventIgnored(t *testing.T) {
	store := seededStore()
	r := NewReconciler(store, zap.NewNop())

	outcome, err := r.Handle(context.Background(),
		newEvent(t, "payout.paid", accountID, map[string]any{"id": "po_1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Zero(t, store.writes)
}

func TestReconciler_MalformedObject(t *testing.T) {
	r := NewReconciler(seededStore(), zap.NewNop())

	e := &stripe.Event{
		ID:   "evt_bad",
		Type: webhook.EventAccountUpdated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":123,"charges_enabled":"yes"}`)},
	}

	_, err := r.Handle(context.Background(), e)
	assert.Error(t, err)
}

type failingLookupStore struct {
	*memStore
}

func (failingLookupStore) FindUserIDByExternalAccount(context.Context, string) (string, error) {
	return "", errStoreDown
}

func TestReconciler_LookupFailureIsUnavailable(t *testing.T) {
	r := NewReconciler(failingLookupStore{seededStore()}, zap.NewNop())

	_, err := r.Handle(context.Background(), deauthorized(t))
	assert.True(t, errors.Is(err, ErrUnavailable), "expected ErrUnavailable, got %v", err)
}

func snapshot(s *memStore) string {
	acc := s.accounts[sellerID]
	bal := s.balances[sellerID]
	ext := "<nil>"
	if acc.ExternalAccountID != nil {
		ext = *acc.ExternalAccountID
	}
	return fmt.Sprintf("%s|%t|%t|%t|%t|%v|%t|%t|%v",
		ext, acc.Onboarded, acc.ChargesEnabled, acc.PayoutsEnabled, acc.DetailsSubmitted,
		bal.HasAccount(), bal.PayoutsEnabled, bal.DetailsSubmitted, s.listings[sellerID])
}
