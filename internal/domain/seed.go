package domain

// 播种基线数据：两个后端共用同一份，保证切换后端后
// 初始可见内容一致。

func SeedCategories() []Category {
	return []Category{
		{Name: "Electronics", Slug: "electronics", Description: "Phones, laptops and gadgets", Ordering: 1, Active: true},
		{Name: "Home & Kitchen", Slug: "home-kitchen", Description: "Everything for the house", Ordering: 2, Active: true},
		{Name: "Fashion", Slug: "fashion", Description: "Clothing and accessories", Ordering: 3, Active: true},
		{Name: "Books", Slug: "books", Description: "Paper and digital books", Ordering: 4, Active: true},
		{Name: "Sports", Slug: "sports", Description: "Sports and outdoor gear", Ordering: 5, Active: true},
	}
}

func SeedJobCategories() []JobCategory {
	return []JobCategory{
		{Name: "Delivery", Slug: "delivery", Description: "Pickup and drop-off errands", Ordering: 1, Active: true},
		{Name: "Repairs", Slug: "repairs", Description: "Small fixes around the house", Ordering: 2, Active: true},
		{Name: "Tutoring", Slug: "tutoring", Description: "Lessons and coaching", Ordering: 3, Active: true},
		{Name: "Cleaning", Slug: "cleaning", Description: "Home and office cleaning", Ordering: 4, Active: true},
		{Name: "Other", Slug: "other", Description: "Anything else", Ordering: 99, Active: true},
	}
}

// SeedSettings 基线站点设置（seed 标记不在其中，由后端最后写入）
func SeedSettings() map[string]string {
	return map[string]string{
		"site_name":     "MarketHub",
		"currency":      "USD",
		"jobs_enabled":  "true",
		"theme_default": "light",
	}
}

// SeedAdmin 播种管理员的凭据，由配置注入到后端构造器
type SeedAdmin struct {
	Email        string
	PasswordHash string
}
