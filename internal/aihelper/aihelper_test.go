package aihelper

import (
	"strings"
	"testing"

	"go-markethub/internal/domain"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.Address
	}{
		{
			name: "empty input",
			in:   "   ",
			want: domain.Address{},
		},
		{
			name: "postal and phone extracted",
			in:   "12 Baker Street, Almaty, Almaty Region 050000 +7 701 234 5678",
			want: domain.Address{
				AddressLine1: "12 Baker Street",
				City:         "Almaty",
				State:        "Almaty Region",
				PostalCode:   "050000",
				PhoneNumber:  "+7 701 234 5678",
			},
		},
		{
			name: "single line",
			in:   "42 Main Road",
			want: domain.Address{AddressLine1: "42 Main Road"},
		},
		{
			name: "recipient on first line",
			in:   "Aigerim Bekova\n12 Baker Street\nApt 4\nAlmaty\nAlmaty Region",
			want: domain.Address{
				RecipientName: "Aigerim Bekova",
				AddressLine1:  "12 Baker Street",
				AddressLine2:  "Apt 4",
				City:          "Almaty",
				State:         "Almaty Region",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAddress(tt.in)
			if got != tt.want {
				t.Errorf("ParseAddress(%q)\n got %+v\nwant %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAddressNeverPanics(t *testing.T) {
	for _, in := range []string{"", ",,,,", "\n\n\n", "123456", "000000 111111"} {
		_ = ParseAddress(in)
	}
}

func TestSuggestDescription(t *testing.T) {
	if got := SuggestDescription("", "books"); got != "" {
		t.Errorf("empty name should yield empty description, got %q", got)
	}
	got := SuggestDescription("Travel Atlas", "Books")
	if !strings.Contains(got, "Travel Atlas") || !strings.Contains(got, "Books") {
		t.Errorf("description missing name or category: %q", got)
	}
}

func TestSuggestCategory(t *testing.T) {
	cats := []domain.Category{
		{ID: "c1", Slug: "electronics"},
		{ID: "c2", Slug: "books"},
		{ID: "c3", Slug: "sports"},
	}
	if got := SuggestCategory("Wireless Headphone Stand", cats); got == nil || got.ID != "c1" {
		t.Errorf("headphone should map to electronics, got %+v", got)
	}
	if got := SuggestCategory("Pocket Novel", cats); got == nil || got.ID != "c2" {
		t.Errorf("novel should map to books, got %+v", got)
	}
	if got := SuggestCategory("Mystery Widget", cats); got != nil {
		t.Errorf("no keyword hit should return nil, got %+v", got)
	}
}

func TestMockProducts(t *testing.T) {
	if got := MockProducts(0); got != nil {
		t.Errorf("n=0 should return nil, got %v", got)
	}
	ps := MockProducts(15)
	if len(ps) != 15 {
		t.Fatalf("got %d products, want 15", len(ps))
	}
	seen := map[string]bool{}
	for _, p := range ps {
		if p.Name == "" || p.Price <= 0 || p.Stock <= 0 {
			t.Errorf("mock product incomplete: %+v", p)
		}
		if seen[p.Name] {
			t.Errorf("duplicate mock name %q", p.Name)
		}
		seen[p.Name] = true
	}
}
