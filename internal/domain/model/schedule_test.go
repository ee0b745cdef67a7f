//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"lms-enrollment-engine/internal/domain"
)

func TestTransition(t *testing.T) {
	t.Run("allowed transitions", func(t *testing.T) {
		cases := []struct {
			name string
			cur  ScheduleStatus
			ev   EventType
			full bool
			want ScheduleStatus
			noop bool
		}{
			{"pending to paid", ScheduleStatusPending, EventChargeSucceeded, false, ScheduleStatusPaid, false},
			{"pending to failed", ScheduleStatusPending, EventChargeFailed, false, ScheduleStatusFailed, false},
			{"failed to paid on late success", ScheduleStatusFailed, EventChargeSucceeded, false, ScheduleStatusPaid, false},
			{"paid stays paid on duplicate success", ScheduleStatusPaid, EventChargeSucceeded, false, ScheduleStatusPaid, true},
			{"failed stays failed on duplicate failure", ScheduleStatusFailed, EventChargeFailed, false, ScheduleStatusFailed, true},
			{"paid to refunded on full refund", ScheduleStatusPaid, EventRefundIssued, true, ScheduleStatusRefunded, false},
			{"paid to partially_refunded", ScheduleStatusPaid, EventRefundIssued, false, ScheduleStatusPartiallyRefunded, false},
			{"partial refund then full", ScheduleStatusPartiallyRefunded, EventRefundIssued, true, ScheduleStatusRefunded, false},
			{"dispute leaves paid untouched", ScheduleStatusPaid, EventDisputeOpened, false, ScheduleStatusPaid, true},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				next, noop, err := Transition(c.cur, c.ev, c.full)
				if err != nil {
					t.Fatalf("expected no error, but got: %v", err)
				}
				if next != c.want {
					t.Errorf("expected %s, got %s", c.want, next)
				}
				if noop != c.noop {
					t.Errorf("expected noop=%v, got %v", c.noop, noop)
				}
			})
		}
	})

	t.Run("rejected transitions surface ErrInvalidTransition", func(t *testing.T) {
		cases := []struct {
			name string
			cur  ScheduleStatus
			ev   EventType
		}{
			{"refund before charge confirmation", ScheduleStatusPending, EventRefundIssued},
			{"refund on failed schedule", ScheduleStatusFailed, EventRefundIssued},
			{"refund on fully refunded schedule", ScheduleStatusRefunded, EventRefundIssued},
			{"late failure after success", ScheduleStatusPaid, EventChargeFailed},
			{"success on refunded schedule", ScheduleStatusRefunded, EventChargeSucceeded},
			{"dispute on pending schedule", ScheduleStatusPending, EventDisputeOpened},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				next, _, err := Transition(c.cur, c.ev, true)
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if next != c.cur {
					t.Errorf("rejected transition must not move the status: %s -> %s", c.cur, next)
				}
			})
		}
	})
}

func TestPaymentApplyRefund(t *testing.T) {
	now := time.Now()

	t.Run("partial refund keeps invariant", func(t *testing.T) {
		// partial refund of $200 on a $540.83 paid installment
		p := &Payment{ID: "pay-1", Amount: 54_083, Status: PaymentStatusSucceeded}
		if err := p.ApplyRefund(20_000, now); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Status != PaymentStatusPartiallyRefunded {
			t.Errorf("expected partially_refunded, got %s", p.Status)
		}
		if p.RefundedAmount != 20_000 {
			t.Errorf("expected refunded_amount 20000, got %d", p.RefundedAmount)
		}
		if p.RefundedAt == nil {
			t.Error("expected refunded_at to be set")
		}
	})

	t.Run("refunds accumulate to fully refunded", func(t *testing.T) {
		p := &Payment{ID: "pay-1", Amount: 1000, Status: PaymentStatusSucceeded}
		if err := p.ApplyRefund(400, now); err != nil {
			t.Fatalf("first refund: %v", err)
		}
		if err := p.ApplyRefund(600, now); err != nil {
			t.Fatalf("second refund: %v", err)
		}
		if p.Status != PaymentStatusRefunded {
			t.Errorf("expected refunded, got %s", p.Status)
		}
	})

	t.Run("refund may not exceed the payment amount", func(t *testing.T) {
		p := &Payment{ID: "pay-1", Amount: 1000, Status: PaymentStatusSucceeded, RefundedAmount: 900}
		if err := p.ApplyRefund(200, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if p.RefundedAmount != 900 {
			t.Errorf("failed refund must not mutate the payment, got %d", p.RefundedAmount)
		}
	})
}

func TestProviderEventValidate(t *testing.T) {
	ev := &ProviderEvent{EventID: "evt_1", Provider: "stripe", Type: EventChargeSucceeded, ChargeRef: "ch_1", Amount: 100}
	if err := ev.Validate(); err != nil {
		t.Fatalf("expected valid event, got: %v", err)
	}

	bad := []*ProviderEvent{
		{Provider: "stripe", Type: EventChargeSucceeded},
		{EventID: "evt_1", Type: EventChargeSucceeded},
		{EventID: "evt_1", Provider: "stripe", Type: "charge_exploded"},
		{EventID: "evt_1", Provider: "stripe", Type: EventRefundIssued, Amount: -5},
	}
	for i, e := range bad {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
