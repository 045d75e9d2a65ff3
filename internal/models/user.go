package models

// User is a registered arcade account. Password holds the encoded hash and is
// never serialized.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Username string `json:"username"`

	// Scores only carries games with a stored value; a missing key means null.
	Scores Scores `json:"scores"`
}

// Identity is what a session binds a request to.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// UserKey selects a single user row, by id when ID is non-zero and by
// username otherwise.
type UserKey struct {
	ID       int64
	Username string
}
