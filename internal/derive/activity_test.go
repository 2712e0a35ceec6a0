package derive

import (
	"strings"
	"testing"

	"go-markethub/internal/domain"
)

func TestDescribeProductChange(t *testing.T) {
	old := &domain.Product{Name: "Mug", Price: 20, Stock: 3}
	upd := &domain.Product{Name: "Mug", Price: 25, Stock: 1}
	got := DescribeProductChange(old, upd)
	if !strings.Contains(got, "Price changed from $20.00 to $25.00") {
		t.Errorf("missing price diff: %q", got)
	}
	if !strings.Contains(got, "Stock changed from 3 to 1") {
		t.Errorf("missing stock diff: %q", got)
	}

	same := DescribeProductChange(old, old)
	if same != "Product updated" {
		t.Errorf("no-diff fallback = %q", same)
	}
}

func TestDescribeUserChange(t *testing.T) {
	old := &domain.User{Name: "A", Email: "a@x.io", Role: domain.RoleCustomer}
	upd := &domain.User{Name: "A", Email: "a@x.io", Role: domain.RoleAdmin}
	got := DescribeUserChange(old, upd)
	if !strings.Contains(got, "Role changed from customer to admin") {
		t.Errorf("got %q", got)
	}
}
