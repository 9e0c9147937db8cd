package models

// OrderCounter backs the per-day order number sequence. The row is bumped
// with an atomic upsert so concurrent settlements never observe the same
// sequence value.
type OrderCounter struct {
	Day string `gorm:"column:day;primaryKey"`
	Seq int    `gorm:"column:seq;not null;default:0"`
}
