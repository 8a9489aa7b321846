package cooldown

import "testing"

func TestAllowWithoutCooldown(t *testing.T) {
	tbl := NewTable(0.015)
	if !tbl.Allow("KRW-BTC", 100) {
		t.Fatal("market without cooldown must be allowed")
	}
}

func TestProfitCooldownReleasesBelowExit(t *testing.T) {
	tbl := NewTable(0.015)
	tbl.Arm("KRW-BTC", 100, ReasonProfit)

	cases := []struct {
		name  string
		price float64
		want  bool
	}{
		{"still near exit", 99.9, false},
		{"above exit", 101, false},
		{"exactly at threshold", 98.5, false},
		{"pulled back past gap", 98.4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := NewTable(0.015)
			tbl.Arm("KRW-BTC", 100, ReasonProfit)
			if got := tbl.Allow("KRW-BTC", tc.price); got != tc.want {
				t.Errorf("Allow at %v = %v, want %v", tc.price, got, tc.want)
			}
		})
	}
}

func TestLossCooldownReleasesAboveExit(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		want  bool
	}{
		{"still near exit", 100.1, false},
		{"below exit", 99, false},
		{"exactly at threshold", 101.5, false},
		{"recovered past gap", 101.6, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := NewTable(0.015)
			tbl.Arm("KRW-BTC", 100, ReasonLoss)
			if got := tbl.Allow("KRW-BTC", tc.price); got != tc.want {
				t.Errorf("Allow at %v = %v, want %v", tc.price, got, tc.want)
			}
		})
	}
}

func TestReleaseRemovesEntry(t *testing.T) {
	tbl := NewTable(0.015)
	tbl.Arm("KRW-BTC", 100, ReasonProfit)

	if !tbl.Allow("KRW-BTC", 95) {
		t.Fatal("expected release at 95")
	}
	if tbl.Active("KRW-BTC") {
		t.Fatal("entry still armed after release")
	}
	// Once released, the gate stays open even back at the exit price.
	if !tbl.Allow("KRW-BTC", 100) {
		t.Fatal("released market blocked again without a new close")
	}
}

func TestArmReplacesExisting(t *testing.T) {
	tbl := NewTable(0.015)
	tbl.Arm("KRW-BTC", 100, ReasonProfit)
	tbl.Arm("KRW-BTC", 200, ReasonLoss)

	// Old profit condition (price < 98.5) must not release the new entry.
	if tbl.Allow("KRW-BTC", 98) {
		t.Fatal("stale cooldown condition released re-armed entry")
	}
	if !tbl.Allow("KRW-BTC", 203.1) {
		t.Fatal("re-armed loss cooldown failed to release above gap")
	}
}

func TestEntriesSnapshot(t *testing.T) {
	tbl := NewTable(0.015)
	tbl.Arm("KRW-ETH", 50, ReasonLoss)
	tbl.Arm("KRW-BTC", 100, ReasonProfit)

	entries := tbl.Entries()
	if len(entries) != 2 || entries[0].Market != "KRW-BTC" || entries[1].Market != "KRW-ETH" {
		t.Fatalf("Entries() = %+v", entries)
	}
	if entries[0].Since.IsZero() {
		t.Fatal("Since not stamped")
	}
	tbl.Clear("KRW-BTC")
	if tbl.Len() != 1 {
		t.Fatalf("Len after Clear = %d, want 1", tbl.Len())
	}
}
