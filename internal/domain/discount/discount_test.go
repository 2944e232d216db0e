package discount

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDefaultCatalog_Order(t *testing.T) {
	opts := DefaultCatalog().Options()
	want := []OptionType{NewUser, UrgentConversion, ReturningUser, BulkPurchase, VIP}
	if len(opts) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(opts))
	}
	for i, o := range opts {
		if o.Type != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], o.Type)
		}
		if o.DiscountType != Percentage {
			t.Errorf("%s: expected percentage type", o.Type)
		}
	}
}

func TestOption_RangeAndMidpoint(t *testing.T) {
	opt, ok := DefaultCatalog().Option(UrgentConversion)
	if !ok {
		t.Fatal("expected urgent_conversion")
	}
	if !opt.InRange(d("0.15")) || !opt.InRange(d("0.40")) {
		t.Error("bounds must be inclusive")
	}
	if opt.InRange(d("0.41")) || opt.InRange(d("0.14")) {
		t.Error("values outside bounds must be rejected")
	}
	if !opt.Midpoint().Equal(d("0.28")) {
		t.Errorf("expected midpoint 0.28 (0.275 rounded), got %s", opt.Midpoint())
	}
}

func TestCatalog_Index(t *testing.T) {
	c := DefaultCatalog()
	if c.Index(BulkPurchase) != 3 {
		t.Errorf("expected bulk at 3, got %d", c.Index(BulkPurchase))
	}
	if c.Index("nope") != -1 {
		t.Error("expected -1 for unknown option")
	}
}

func TestPromptGuidance_SkipsInactive(t *testing.T) {
	opts := DefaultCatalog().Options()
	opts[4].Active = false
	text := NewCatalog(opts).PromptGuidance()
	if strings.Contains(text, "vip_discount") {
		t.Error("inactive option must not be offered")
	}
	if !strings.Contains(text, "Range: 10% - 30%") {
		t.Errorf("expected new_user range in guidance:\n%s", text)
	}
}

func TestApplication_Normalize(t *testing.T) {
	c := DefaultCatalog()
	a := Application{
		UserID:     "u1",
		OptionType: NewUser,
		Value:      d("0.2"),
		CourseIDs:  []string{"c1", "c1", " c2 ", ""},
	}
	n, opt, err := a.Normalize(c, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Type != NewUser {
		t.Errorf("unexpected option %s", opt.Type)
	}
	if len(n.CourseIDs) != 2 || n.CourseIDs[1] != "c2" {
		t.Errorf("expected deduplicated courses, got %v", n.CourseIDs)
	}
	if n.ValidHours != 24 {
		t.Errorf("expected default valid hours, got %d", n.ValidHours)
	}
}

func TestApplication_Normalize_Errors(t *testing.T) {
	c := DefaultCatalog()
	base := Application{UserID: "u1", OptionType: NewUser, Value: d("0.2"), CourseIDs: []string{"c1"}}

	tests := []struct {
		name string
		mut  func(*Application)
		want error
	}{
		{"missing user", func(a *Application) { a.UserID = "" }, domain.ErrValidation},
		{"unknown option", func(a *Application) { a.OptionType = "friends" }, domain.ErrValidation},
		{"above one", func(a *Application) { a.Value = d("1.5") }, domain.ErrValidation},
		{"out of range", func(a *Application) { a.Value = d("0.35") }, domain.ErrDiscountOutOfRange},
		{"no courses", func(a *Application) { a.CourseIDs = []string{" "} }, domain.ErrValidation},
		{"too long", func(a *Application) { a.ValidHours = 169 }, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := base
			tc.mut(&a)
			if _, _, err := a.Normalize(c, 24); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRangeError_Message(t *testing.T) {
	c := DefaultCatalog()
	_, _, err := Application{UserID: "u", OptionType: ReturningUser, Value: d("0.3"), CourseIDs: []string{"c"}}.Normalize(c, 24)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RangeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "returning_user allows 0.05-0.2") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestAmountFor(t *testing.T) {
	if !AmountFor(d("1999"), d("0.15")).Equal(d("299.85")) {
		t.Errorf("unexpected amount %s", AmountFor(d("1999"), d("0.15")))
	}
	if !AmountFor(d("0"), d("0.5")).IsZero() {
		t.Error("expected zero for zero base")
	}
	if !AmountFor(d("100"), d("1")).Equal(d("100")) {
		t.Error("amount must be capped at base")
	}
}

func TestNewApplied_Invariant(t *testing.T) {
	a := Application{UserID: "u1", OptionType: NewUser, Value: d("0.15"), CourseIDs: []string{"c1"}, ValidHours: 48}
	opt, _ := DefaultCatalog().Option(NewUser)
	ap := NewApplied(a, opt, d("1999.99"), now)
	s := ap.State()

	if !s.OriginalAmount.Sub(s.DiscountAmount).Equal(s.FinalAmount) {
		t.Errorf("final must equal original - discount: %s - %s != %s", s.OriginalAmount, s.DiscountAmount, s.FinalAmount)
	}
	if !s.DiscountAmount.Equal(d("300")) {
		t.Errorf("expected 300.00 (299.9985 rounded), got %s", s.DiscountAmount)
	}
	if !s.ValidUntil.Equal(now.Add(48 * time.Hour)) {
		t.Errorf("unexpected expiry %v", s.ValidUntil)
	}
	if !strings.HasPrefix(s.ID, "disc_") {
		t.Errorf("unexpected id %q", s.ID)
	}
}

func TestApplied_UsableAndMarkUsed(t *testing.T) {
	ap := ReconstructApplied(AppliedState{ID: "d1", Value: d("0.1"), CourseIDs: []string{"c1"}, ValidUntil: now.Add(time.Hour)})
	if !ap.Usable(now) {
		t.Fatal("expected usable")
	}
	if ap.Usable(now.Add(2 * time.Hour)) {
		t.Error("expired discount must not be usable")
	}

	used, err := ap.MarkUsed("ORDER_1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used.Usable(now) || used.State().OrderID != "ORDER_1" {
		t.Error("used discount must not be usable")
	}
	if _, err := used.MarkUsed("ORDER_2", now); !errors.Is(err, domain.ErrDiscountUnavailable) {
		t.Errorf("expected ErrDiscountUnavailable, got %v", err)
	}
}

func TestApplied_AmountOn(t *testing.T) {
	ap := ReconstructApplied(AppliedState{Value: d("0.2"), CourseIDs: []string{"c1", "c3"}})
	covered, amount := ap.AmountOn(map[string]decimal.Decimal{
		"c1": d("1000"),
		"c2": d("500"),
		"c3": d("250"),
	})
	if !covered.Equal(d("1250")) || !amount.Equal(d("250")) {
		t.Errorf("unexpected covered=%s amount=%s", covered, amount)
	}
}

func TestApplied_Released(t *testing.T) {
	opt, _ := DefaultCatalog().Option(NewUser)
	a := Application{UserID: "u1", OptionType: NewUser, Value: d("0.2"), CourseIDs: []string{"c1"}, ValidHours: 24}
	used, err := NewApplied(a, opt, d("100"), now).MarkUsed("ORDER_1", now)
	if err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	r := used.Released()
	if r.IsUsed() || r.OrderID() != "" || r.State().UsedAt != nil {
		t.Errorf("expected released discount, got %+v", r.State())
	}
	if !r.Usable(now) {
		t.Error("released discount must be usable again before expiry")
	}
}
