package models

import "testing"

func TestPaymentStatusAdvances(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{PaymentStatusCreated, PaymentStatusPending, true},
		{PaymentStatusPending, PaymentStatusCaptured, true},
		{PaymentStatusAuthorized, PaymentStatusCaptured, true},
		{PaymentStatusCaptured, PaymentStatusRefunded, true},
		{PaymentStatusCaptured, PaymentStatusPending, false},
		{PaymentStatusRefunded, PaymentStatusCaptured, false},
		{PaymentStatusCaptured, PaymentStatusCaptured, false},
		{"bogus", PaymentStatusCaptured, false},
		{PaymentStatusCreated, "bogus", false},
	}
	for _, c := range cases {
		if got := PaymentStatusAdvances(c.from, c.to); got != c.want {
			t.Errorf("PaymentStatusAdvances(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestPaymentRefundable(t *testing.T) {
	p := Payment{Amount: 1000, RefundAmount: 300}
	if got := p.Refundable(); got != 700 {
		t.Errorf("Refundable() = %d, want 700", got)
	}
}
