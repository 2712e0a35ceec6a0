// Package derive 是后端无关的一致性/派生引擎：纯函数，
// 输入受影响实体的当前状态，输出应持久化的聚合值。
// 引擎内部不允许出现任何后端分支，也不会产生错误。
package derive

import "math"

// Round1 平均分保留一位小数
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// ApplyReview 增量纳入一条新评分，返回新的 (均值, 条数)
func ApplyReview(avg float64, count, rating int) (float64, int) {
	n := count + 1
	return Round1((avg*float64(count) + float64(rating)) / float64(n)), n
}

// RemoveReview 逆向公式（管理员删评）。条数归零时均值复位为 0。
func RemoveReview(avg float64, count, rating int) (float64, int) {
	if count <= 1 {
		return 0, 0
	}
	n := count - 1
	return Round1((avg*float64(count) - float64(rating)) / float64(n)), n
}

// RatingOf 全量重算路径：以源数据为准，自愈增量漂移
func RatingOf(ratings []int) (avg float64, count int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	return Round1(float64(sum) / float64(len(ratings))), len(ratings)
}
