package orderbook

import (
	"errors"
	"math"
	"testing"
)

func TestOrderIsValid(t *testing.T) {
	tests := []struct {
		name  string
		order *Order
		want  bool
	}{
		{"valid bid", NewOrder(1, "a", 1, 10, Bid), true},
		{"zero price ask", NewOrder(1, "a", 3, 0, Ask), true},
		{"zero quantity", NewOrder(1, "a", 0, 10, Bid), false},
		{"negative price", NewOrder(1, "a", 1, -0.5, Bid), false},
		{"NaN price", NewOrder(1, "a", 1, math.NaN(), Bid), false},
		{"infinite price", NewOrder(1, "a", 1, math.Inf(1), Ask), false},
		{"no side", &Order{ID: 1, Owner: "a", Quantity: 1, Price: 1}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b *Order
		want bool
	}{
		{"crossing", NewOrder(1, "a", 1, 10, Bid), NewOrder(2, "b", 1, 9, Ask), true},
		{"equal price", NewOrder(1, "a", 1, 10, Ask), NewOrder(2, "b", 1, 10, Bid), true},
		{"no cross", NewOrder(1, "a", 1, 8, Bid), NewOrder(2, "b", 1, 9, Ask), false},
		{"same owner", NewOrder(1, "a", 1, 10, Bid), NewOrder(2, "a", 1, 9, Ask), false},
		{"same side", NewOrder(1, "a", 1, 10, Bid), NewOrder(2, "b", 1, 9, Bid), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Matches(tt.b); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Matches(tt.a); got != tt.want {
				t.Errorf("Matches() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitAndSplat(t *testing.T) {
	o := NewOrder(4, "a", 10, 7.5, Ask)
	child, err := o.Split(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if o.Quantity != 7 || child.Quantity != 3 {
		t.Fatalf("split: parent %d child %d, want 7 and 3", o.Quantity, child.Quantity)
	}

	grandchild, err := o.Splat(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if o.Quantity != 2 || grandchild.Quantity != 5 {
		t.Fatalf("splat: parent %d child %d, want 2 and 5", o.Quantity, grandchild.Quantity)
	}
	if o.Child != 2 || grandchild.Fragment != 2 || grandchild.ID != 4 {
		t.Fatalf("fragment links wrong: %v -> %v", o, grandchild)
	}
}

func TestSplitRejectsBadAmounts(t *testing.T) {
	for _, n := range []int64{0, -1, 5, 6} {
		o := NewOrder(1, "a", 5, 1, Bid)
		if _, err := o.Split(n, 1); !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("Split(%d) err = %v, want ErrInvalidSplit", n, err)
		}
		if _, err := o.Splat(n, 1); !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("Splat(%d) err = %v, want ErrInvalidSplit", n, err)
		}
		if o.Quantity != 5 {
			t.Errorf("failed split changed quantity to %d", o.Quantity)
		}
	}
}

func TestSideText(t *testing.T) {
	for _, s := range []Side{Bid, Ask} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Side
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("round trip of %s gave %v, %v", s, got, err)
		}
	}
	var s Side
	if err := s.UnmarshalText([]byte("both")); err == nil {
		t.Error("expected error for unknown side")
	}
}
