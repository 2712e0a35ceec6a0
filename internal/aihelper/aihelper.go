// Package aihelper 提供纯函数式的智能辅助：地址解析、文案与分类建议、
// 演示数据生成。全部走确定性规则与兜底，从不出错、从不出网，
// 产出只作为普通写操作的输入。
package aihelper

import (
	"fmt"
	"regexp"
	"strings"

	"go-markethub/internal/domain"
)

var (
	postalRe = regexp.MustCompile(`\b\d{6}\b`)
	phoneRe  = regexp.MustCompile(`(?:\+?\d[\d\s-]{7,14}\d)`)
)

// ParseAddress 从自由文本里尽力抽取结构化地址。
// 邮编按六位数字识别，电话按宽松号码串识别，剩余行按
// 收件人/地址行/市/省的顺序启发式归位。解析不出就给零值，不报错。
func ParseAddress(text string) domain.Address {
	var a domain.Address
	text = strings.TrimSpace(text)
	if text == "" {
		return a
	}

	if m := postalRe.FindString(text); m != "" {
		a.PostalCode = m
		text = strings.Replace(text, m, "", 1)
	}
	if m := phoneRe.FindString(text); m != "" {
		a.PhoneNumber = strings.TrimSpace(m)
		text = strings.Replace(text, m, "", 1)
	}

	var lines []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ','
	}) {
		if p := strings.TrimSpace(part); p != "" {
			lines = append(lines, p)
		}
	}
	switch len(lines) {
	case 0:
	case 1:
		a.AddressLine1 = lines[0]
	case 2:
		a.AddressLine1 = lines[0]
		a.City = lines[1]
	case 3:
		a.AddressLine1 = lines[0]
		a.City = lines[1]
		a.State = lines[2]
	default:
		// 首行像人名（短且无数字）时归为收件人
		if len(lines[0]) <= 40 && !strings.ContainsAny(lines[0], "0123456789") {
			a.RecipientName = lines[0]
			lines = lines[1:]
		}
		a.AddressLine1 = lines[0]
		if len(lines) > 3 {
			a.AddressLine2 = lines[1]
			lines = lines[1:]
		}
		a.City = lines[1]
		a.State = lines[2]
	}
	return a
}

// SuggestDescription 为商品名生成一句货架文案
func SuggestDescription(name, category string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if category = strings.TrimSpace(category); category != "" {
		return fmt.Sprintf("%s - a quality pick in %s. Reliable, well-reviewed and ready to ship.", name, category)
	}
	return fmt.Sprintf("%s - a quality pick. Reliable, well-reviewed and ready to ship.", name)
}

// 关键词到分类 slug 的映射表，命中最多者胜出
var categoryHints = map[string][]string{
	"electronics":  {"phone", "laptop", "tablet", "camera", "headphone", "charger", "cable", "speaker", "monitor", "keyboard"},
	"home-kitchen": {"lamp", "chair", "table", "pan", "pot", "knife", "kettle", "blender", "pillow", "towel"},
	"fashion":      {"shirt", "dress", "scarf", "jacket", "shoe", "sneaker", "hat", "belt", "sock", "jean"},
	"books":        {"book", "novel", "atlas", "guide", "dictionary", "comic", "journal"},
	"sports":       {"ball", "racket", "bike", "dumbbell", "yoga", "tent", "helmet", "glove"},
}

// SuggestCategory 在给定分类集中挑关键词命中最多的一个；
// 全不命中时返回 nil，调用方自行兜底。
func SuggestCategory(name string, categories []domain.Category) *domain.Category {
	needle := strings.ToLower(name)
	best := -1
	var pick *domain.Category
	for i := range categories {
		hints := categoryHints[categories[i].Slug]
		score := 0
		for _, h := range hints {
			if strings.Contains(needle, h) {
				score++
			}
		}
		if score > best && score > 0 {
			best = score
			pick = &categories[i]
		}
	}
	return pick
}

var mockNames = []string{
	"Wireless Earbuds", "Ceramic Mug", "Linen Scarf", "Travel Atlas",
	"Yoga Mat", "Desk Lamp", "Mechanical Keyboard", "Cast Iron Pan",
	"Running Shoes", "Pocket Notebook",
}

// MockProducts 生成 n 条演示商品（未落库，id 留空由 create 分配）
func MockProducts(n int) []domain.Product {
	if n <= 0 {
		return nil
	}
	out := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		name := mockNames[i%len(mockNames)]
		if i >= len(mockNames) {
			name = fmt.Sprintf("%s %d", name, i/len(mockNames)+1)
		}
		out = append(out, domain.Product{
			Name:        name,
			Description: SuggestDescription(name, ""),
			Price:       float64(10 + (i*7)%90),
			Stock:       5 + (i*3)%20,
		})
	}
	return out
}
