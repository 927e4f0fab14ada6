package domain

import (
	"testing"
	"time"
)

func TestRegisterStatusOfDerivesCycleBalance(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []RegisterTransaction{
		{Type: RegisterOpening, AmountCents: 10000, CreatedAt: base},
		{Type: RegisterSale, AmountCents: 2500, CreatedAt: base.Add(time.Hour)},
		{Type: RegisterWithdrawal, AmountCents: -1000, CreatedAt: base.Add(2 * time.Hour)},
	}

	status := RegisterStatusOf(entries)
	if !status.Open {
		t.Fatalf("expected open register")
	}
	if status.BalanceCents != 11500 {
		t.Fatalf("expected balance 11500, got %d", status.BalanceCents)
	}
	if status.OpenedAt == nil || !status.OpenedAt.Equal(base) {
		t.Fatalf("expected opened at %v, got %v", base, status.OpenedAt)
	}
}

func TestRegisterStatusOfCarriesBalanceAcrossClose(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []RegisterTransaction{
		{Type: RegisterOpening, AmountCents: 5000, CreatedAt: base},
		{Type: RegisterSale, AmountCents: 1500, CreatedAt: base.Add(time.Hour)},
		{Type: RegisterClosing, AmountCents: 0, CreatedAt: base.Add(8 * time.Hour)},
	}

	status := RegisterStatusOf(entries)
	if status.Open {
		t.Fatalf("expected closed register")
	}
	if status.BalanceCents != 6500 {
		t.Fatalf("expected carried balance 6500, got %d", status.BalanceCents)
	}
	if status.OpenedAt != nil {
		t.Fatalf("expected no opened-at on a closed register, got %v", status.OpenedAt)
	}
}

func TestRegisterStatusOfNewOpeningResetsToCountedFloat(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entries := []RegisterTransaction{
		{Type: RegisterOpening, AmountCents: 5000, CreatedAt: base},
		{Type: RegisterSale, AmountCents: 1500, CreatedAt: base.Add(time.Hour)},
		{Type: RegisterClosing, CreatedAt: base.Add(8 * time.Hour)},
		{Type: RegisterOpening, AmountCents: 7000, CreatedAt: base.Add(24 * time.Hour)},
	}

	status := RegisterStatusOf(entries)
	if !status.Open || status.BalanceCents != 7000 {
		t.Fatalf("expected open register at 7000, got open=%v balance=%d", status.Open, status.BalanceCents)
	}
}

func TestRegisterStatusOfEmptyLogIsClosed(t *testing.T) {
	status := RegisterStatusOf(nil)
	if status.Open || status.BalanceCents != 0 || status.OpenedAt != nil {
		t.Fatalf("expected pristine closed register, got %+v", status)
	}
}
