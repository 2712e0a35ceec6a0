package derive

import (
	"math"
	"testing"
)

func TestApplyReview(t *testing.T) {
	tests := []struct {
		name      string
		avg       float64
		count     int
		rating    int
		wantAvg   float64
		wantCount int
	}{
		{"first review", 0, 0, 5, 5.0, 1},
		{"second review averages", 5.0, 1, 3, 4.0, 2},
		{"rounds to one decimal", 4.0, 2, 5, 4.3, 3},
		{"low rating pulls down", 4.3, 3, 1, 3.5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, count := ApplyReview(tt.avg, tt.count, tt.rating)
			if count != tt.wantCount {
				t.Fatalf("count = %d, want %d", count, tt.wantCount)
			}
			if math.Abs(avg-tt.wantAvg) > 0.05 {
				t.Fatalf("avg = %v, want %v", avg, tt.wantAvg)
			}
		})
	}
}

func TestRemoveReview(t *testing.T) {
	// 先加 5、3，再删 3，应回到 5.0/1
	avg, count := ApplyReview(0, 0, 5)
	avg, count = ApplyReview(avg, count, 3)
	avg, count = RemoveReview(avg, count, 3)
	if count != 1 || avg != 5.0 {
		t.Fatalf("got avg=%v count=%d, want 5.0/1", avg, count)
	}

	// 删到归零复位
	avg, count = RemoveReview(avg, count, 5)
	if count != 0 || avg != 0 {
		t.Fatalf("got avg=%v count=%d, want 0/0", avg, count)
	}

	// 空集上删除保持归零
	avg, count = RemoveReview(0, 0, 4)
	if count != 0 || avg != 0 {
		t.Fatalf("remove on empty: avg=%v count=%d", avg, count)
	}
}

func TestRatingOfMatchesIncremental(t *testing.T) {
	ratings := []int{5, 3, 4, 4, 2, 5, 1}
	var avg float64
	var count int
	for _, r := range ratings {
		avg, count = ApplyReview(avg, count, r)
	}
	fullAvg, fullCount := RatingOf(ratings)
	if count != fullCount {
		t.Fatalf("count mismatch: %d vs %d", count, fullCount)
	}
	if math.Abs(avg-fullAvg) > 0.05 {
		t.Fatalf("incremental avg %v drifted from full recompute %v", avg, fullAvg)
	}
	if fullAvg < 1 || fullAvg > 5 {
		t.Fatalf("avg out of [1,5]: %v", fullAvg)
	}
}
