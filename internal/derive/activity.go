package derive

import (
	"fmt"
	"strings"

	"go-markethub/internal/domain"
)

// DescribeProductChange 对比前后快照，产出人读得懂的变更描述
func DescribeProductChange(old, new *domain.Product) string {
	var parts []string
	if old.Name != new.Name {
		parts = append(parts, fmt.Sprintf("Name changed from %q to %q", old.Name, new.Name))
	}
	if old.Price != new.Price {
		parts = append(parts, fmt.Sprintf("Price changed from $%.2f to $%.2f", old.Price, new.Price))
	}
	if old.Stock != new.Stock {
		parts = append(parts, fmt.Sprintf("Stock changed from %d to %d", old.Stock, new.Stock))
	}
	if old.CategoryID != new.CategoryID {
		parts = append(parts, "Category changed")
	}
	if old.Description != new.Description {
		parts = append(parts, "Description updated")
	}
	if len(parts) == 0 {
		return "Product updated"
	}
	return strings.Join(parts, "; ")
}

func DescribeUserChange(old, new *domain.User) string {
	var parts []string
	if old.Name != new.Name {
		parts = append(parts, fmt.Sprintf("Name changed from %q to %q", old.Name, new.Name))
	}
	if old.Email != new.Email {
		parts = append(parts, fmt.Sprintf("Email changed from %s to %s", old.Email, new.Email))
	}
	if old.Role != new.Role {
		parts = append(parts, fmt.Sprintf("Role changed from %s to %s", old.Role, new.Role))
	}
	if old.Theme != new.Theme {
		parts = append(parts, "Theme preference changed")
	}
	if len(old.Addresses) != len(new.Addresses) {
		parts = append(parts, "Addresses changed")
	}
	if len(parts) == 0 {
		return "Profile updated"
	}
	return strings.Join(parts, "; ")
}

func DescribeJobChange(old, new *domain.Job) string {
	var parts []string
	if old.Title != new.Title {
		parts = append(parts, fmt.Sprintf("Title changed from %q to %q", old.Title, new.Title))
	}
	if old.Status != new.Status {
		parts = append(parts, fmt.Sprintf("Status changed from %s to %s", old.Status, new.Status))
	}
	if old.Compensation != new.Compensation {
		parts = append(parts, fmt.Sprintf("Compensation changed from $%.2f to $%.2f", old.Compensation, new.Compensation))
	}
	if old.Urgent != new.Urgent {
		parts = append(parts, fmt.Sprintf("Urgent flag set to %v", new.Urgent))
	}
	if len(parts) == 0 {
		return "Job updated"
	}
	return strings.Join(parts, "; ")
}

func DescribeCreate(entityType, name string) string {
	return fmt.Sprintf("Created %s %q", entityType, name)
}

func DescribeDelete(entityType, name string) string {
	return fmt.Sprintf("Deleted %s %q", entityType, name)
}
