package session_test

import (
	"testing"

	"github.com/dcosta/orderbot/internal/orderbot/session"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		value   int
		want    session.Stage
		wantErr bool
	}{
		{0, session.StageWelcome, false},
		{2, session.StageItemSelection, false},
		{3, session.StageAddressCollection, false},
		{4, session.StageDispatch, false},
		{5, session.StageHandoff, false},
		{99, session.StageReengagement, false},
		{1, 0, true},
		{6, 0, true},
		{-1, 0, true},
		{100, 0, true},
	}

	for _, tt := range tests {
		got, err := session.ParseStage(tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStage(%d): expected error, got %v", tt.value, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStage(%d): unexpected error: %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStage(%d): got %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	s := session.New("+15551234567")

	if s.PartyID != "+15551234567" {
		t.Errorf("PartyID: got %q", s.PartyID)
	}
	if s.Stage != session.StageWelcome {
		t.Errorf("Stage: got %v, want welcome", s.Stage)
	}
	if len(s.Cart) != 0 {
		t.Errorf("Cart: got %d lines, want 0", len(s.Cart))
	}
	if s.Address != "" {
		t.Errorf("Address: got %q, want empty", s.Address)
	}
}

func TestReset(t *testing.T) {
	s := session.New("party")
	s.Stage = session.StageAddressCollection
	s.Cart = []session.CartLine{{CatalogID: "1", Description: "Apple", UnitPrice: 6}}
	s.Address = "12 Main St"

	s.Reset()

	if s.Stage != session.StageWelcome {
		t.Errorf("Stage after reset: got %v", s.Stage)
	}
	if len(s.Cart) != 0 {
		t.Errorf("Cart after reset: got %d lines", len(s.Cart))
	}
	if s.Address != "" {
		t.Errorf("Address after reset: got %q", s.Address)
	}
}

func TestCartTotal(t *testing.T) {
	s := session.New("party")
	if got := s.CartTotal(); got != 0 {
		t.Errorf("empty cart total: got %v", got)
	}

	s.Cart = []session.CartLine{
		{CatalogID: "1", Description: "Milk", UnitPrice: 6},
		{CatalogID: "1", Description: "Milk", UnitPrice: 6},
		{CatalogID: "2", Description: "Apple", UnitPrice: 4.5},
	}
	if got := s.CartTotal(); got != 16.5 {
		t.Errorf("cart total: got %v, want 16.5", got)
	}
}

func TestCartDescriptions(t *testing.T) {
	s := session.New("party")
	if got := s.CartDescriptions(); got != nil {
		t.Errorf("empty cart descriptions: got %v", got)
	}

	s.Cart = []session.CartLine{
		{Description: "Milk"},
		{Description: "Apple"},
	}
	got := s.CartDescriptions()
	if len(got) != 2 || got[0] != "Milk" || got[1] != "Apple" {
		t.Errorf("descriptions: got %v", got)
	}
}
