package domain

import "time"

// SettingSeedDone 播种完成标记，最后写入，崩溃可安全重播
const SettingSeedDone = "seed"

type Setting struct {
	Key       string    `json:"key" bson:"_id"`
	Value     string    `json:"value" bson:"value"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}
