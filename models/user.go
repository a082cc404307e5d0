package models

// User is the projection of the account entity this service reads. The
// registration flow owns the table; the verification core only ever flips
// Verified to true.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
