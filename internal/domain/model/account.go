package model

// Account holds the balance of exactly one user, in minor currency units.
type Account struct {
	ID      int64 `json:"id"`
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// AccountSummary is one row of the admin listing. Users without an account
// report a zero balance.
type AccountSummary struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Balance  int64  `json:"balance"`
}
