package credits

import "testing"

func TestDeltaFor(t *testing.T) {
	d, ok := DeltaFor("photos_10")
	if !ok {
		t.Fatal("photos_10 should be a known package")
	}
	if d.Roses != 10 || d.Chocolates != 0 || d.Champagne != 0 || d.Hearts != 0 {
		t.Fatalf("unexpected delta %+v", d)
	}

	if _, ok := DeltaFor("photos_999"); ok {
		t.Fatal("unknown package must not resolve")
	}
}

func TestDeltaForSubscriptionPackages(t *testing.T) {
	d, ok := DeltaFor("sub_gold")
	if !ok {
		t.Fatal("sub_gold should be a known package")
	}
	if d.Chocolates != 200 || d.Roses != 10 || d.Champagne != 5 || d.Hearts != 0 {
		t.Fatalf("unexpected delta %+v", d)
	}
}

func TestBalanceAdd(t *testing.T) {
	b := Balance{Roses: 2}
	d, _ := DeltaFor("photos_10")

	b = b.Add(d)
	if b.Roses != 12 {
		t.Fatalf("expected 12 roses, got %d", b.Roses)
	}
	if b.Chocolates != 0 || b.Champagne != 0 || b.Hearts != 0 {
		t.Fatalf("other denominations must be untouched: %+v", b)
	}

	// Applying the same grant twice doubles it; there is no idempotency at
	// this layer, the caller owns redelivery handling.
	b = b.Add(d)
	if b.Roses != 22 {
		t.Fatalf("expected 22 roses after second grant, got %d", b.Roses)
	}
}
