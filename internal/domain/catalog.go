package domain

import "time"

type Category struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Slug        string    `json:"slug" bson:"slug"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Ordering    int       `json:"ordering" bson:"ordering"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// JobCategory 与 Category 同构，但属于独立集合（删除校验互不影响）
type JobCategory struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Slug        string    `json:"slug" bson:"slug"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Ordering    int       `json:"ordering" bson:"ordering"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

type Product struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
	Price          float64   `json:"price" bson:"price"`
	Stock          int       `json:"stock" bson:"stock"`
	CategoryID     string    `json:"categoryId" bson:"category_id"`
	PrimaryImageID string    `json:"primaryImageId,omitempty" bson:"primary_image_id,omitempty"`
	ImageIDs       []string  `json:"imageIds,omitempty" bson:"image_ids,omitempty"`
	Views          int       `json:"views" bson:"views"`
	Purchases      int       `json:"purchases" bson:"purchases"`
	AverageRating  float64   `json:"averageRating" bson:"average_rating"`
	ReviewCount    int       `json:"reviewCount" bson:"review_count"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// AllImageIDs 主图 + 附图去重集合，删除商品时按此释放 blob
func (p *Product) AllImageIDs() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(p.PrimaryImageID)
	for _, id := range p.ImageIDs {
		add(id)
	}
	return out
}
