package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"payhook/internal/domain"
	"payhook/internal/sentinel"
	"payhook/internal/signature"
)

func TestHTTPSenderSignsAndDelivers(t *testing.T) {
	secret := []byte("out_secret")
	var gotBody []byte
	var gotSignature, gotDeliveryID string

	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(signature.Header)
		gotDeliveryID = r.Header.Get(DeliveryHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	sender := NewHTTPSender(sink.Client(), secret)
	delivery := Delivery{ID: "del_1", Sink: sink.URL, Event: testEvent()}

	if err := sender.Deliver(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotDeliveryID != "del_1" {
		t.Errorf("expected delivery ID header, got %q", gotDeliveryID)
	}
	if err := signature.Verify(secret, gotSignature, gotBody, time.Minute, time.Now()); err != nil {
		t.Errorf("outbound signature did not verify: %v", err)
	}

	var sent domain.PaymentEvent
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("body is not event JSON: %v", err)
	}
	if sent.EventID != "evt_1" {
		t.Errorf("expected event evt_1 in body, got %q", sent.EventID)
	}
}

func TestHTTPSenderClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNoContent, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusNotFound, true, false},
		{http.StatusRequestTimeout, false, true},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
		{http.StatusBadGateway, false, true},
	}

	for _, tc := range cases {
		sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		sender := NewHTTPSender(sink.Client(), []byte("out_secret"))
		err := sender.Deliver(context.Background(), Delivery{ID: "del_1", Sink: sink.URL, Event: testEvent()})
		sink.Close()

		switch {
		case !tc.permanent && !tc.retryable:
			if err != nil {
				t.Errorf("status %d: expected success, got %v", tc.status, err)
			}
		case tc.permanent:
			if !sentinel.IsPermanent(err) {
				t.Errorf("status %d: expected permanent failure, got %v", tc.status, err)
			}
		default:
			if err == nil || sentinel.IsPermanent(err) {
				t.Errorf("status %d: expected retryable failure, got %v", tc.status, err)
			}
		}
	}
}

func TestHTTPSenderConnectionErrorIsRetryable(t *testing.T) {
	sender := NewHTTPSender(&http.Client{Timeout: 100 * time.Millisecond}, []byte("out_secret"))

	err := sender.Deliver(context.Background(), Delivery{ID: "del_1", Sink: "http://127.0.0.1:1/hook", Event: testEvent()})
	if err == nil {
		t.Fatal("expected error for unreachable sink")
	}
	if sentinel.IsPermanent(err) {
		t.Error("connection error must be retryable")
	}
}
