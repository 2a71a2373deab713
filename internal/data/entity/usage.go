package entity

// UsageRecord counts a guest's requests in one calendar month.
type UsageRecord struct {
	GuestKey    string `db:"guest_key"`
	MonthBucket string `db:"month_bucket"`
	Count       int    `db:"count"`
}
