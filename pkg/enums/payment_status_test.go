package enums

import "testing"

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("completed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != PaymentStatusCompleted || !status.Credits() {
		t.Fatalf("expected completed status to credit, got %q", status)
	}

	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestOnlyCompletedCredits(t *testing.T) {
	for _, status := range []PaymentStatus{PaymentStatusPending, PaymentStatusFailed, PaymentStatusExpired} {
		if status.Credits() {
			t.Fatalf("status %q must not credit", status)
		}
		if !status.IsValid() {
			t.Fatalf("status %q should be valid", status)
		}
	}
}
