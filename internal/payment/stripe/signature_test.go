package stripe

import (
	"strings"
	"testing"
	"time"

	paymentdomain "github.com/bolla-network/turion/internal/payment/domain"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0).UTC()

	header := SignPayload(payload, secret, now)
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0).UTC()

	header := SignPayload(payload, secret, now)
	tampered := []byte(`{"id":"evt_2"}`)
	if err := VerifySignature(tampered, header, secret, DefaultSignatureTolerance, now); err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0).UTC()

	header := SignPayload(payload, "whsec_a", now)
	if err := VerifySignature(payload, header, "whsec_b", DefaultSignatureTolerance, now); err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	signedAt := time.Unix(1_700_000_000, 0).UTC()

	header := SignPayload(payload, secret, signedAt)
	later := signedAt.Add(DefaultSignatureTolerance + time.Minute)
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance, later); err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureAcceptsRotatedSecrets(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0).UTC()

	// Two v1 entries, only the second matches the verifying secret.
	stale := SignPayload(payload, "whsec_old", now)
	fresh := SignPayload(payload, "whsec_new", now)
	header := stale + ",v1=" + strings.SplitN(fresh, "v1=", 2)[1]
	if err := VerifySignature(payload, header, "whsec_new", DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
}

func TestVerifySignatureRejectsMissingHeader(t *testing.T) {
	if err := VerifySignature([]byte("{}"), "", "whsec_test", DefaultSignatureTolerance, time.Now()); err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifySignature([]byte("{}"), "t=1,v1=abc", "", DefaultSignatureTolerance, time.Now()); err != paymentdomain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
