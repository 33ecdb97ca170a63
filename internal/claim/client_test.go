package claim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimFreeOffer_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Fatalf("authorization = %q, want Bearer user-token", got)
		}

		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.OfferID != "offer-1" || !req.SkipMintingFee {
			t.Fatalf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"ticket_id":"t-1"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, time.Second)

	res, err := client.ClaimFreeOffer(context.Background(), "user-token", "offer-1", true)
	require.NoError(t, err)
	assert.Equal(t, "t-1", res["ticket_id"])
}

func TestClaimFreeOffer_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantDetail  string
	}{
		{
			name:        "error status with message",
			status:      http.StatusBadRequest,
			body:        `{"error":"Offer already claimed","details":"status=claimed"}`,
			wantMessage: "Offer already claimed",
			wantDetail:  "status=claimed",
		},
		{
			name:        "error status without body",
			status:      http.StatusInternalServerError,
			body:        ``,
			wantMessage: "Unable to claim this offer",
			wantDetail:  "",
		},
		{
			name:        "ok status with error field",
			status:      http.StatusOK,
			body:        `{"error":"Offer expired"}`,
			wantMessage: "Offer expired",
			wantDetail:  `{"error":"Offer expired"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := NewClient(ts.URL, time.Second)

			_, err := client.ClaimFreeOffer(context.Background(), "token", "offer-1", false)

			var rej *RejectedError
			require.True(t, errors.As(err, &rej), "expected RejectedError, got %v", err)
			assert.Equal(t, tt.status, rej.StatusCode)
			assert.Equal(t, tt.wantMessage, rej.Message)
			assert.Equal(t, tt.wantDetail, rej.Detail)
		})
	}
}

func TestClaimFreeOffer_NotConfigured(t *testing.T) {
	client := NewClient("", time.Second)

	_, err := client.ClaimFreeOffer(context.Background(), "token", "offer-1", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
