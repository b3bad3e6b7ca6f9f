package entity

import "time"

// User is a credential record: one row of the `users` table.
type User struct {
	ID             int64      `db:"id"`
	Username       string     `db:"username"`
	PasswordHash   string     `db:"password_hash"`
	FullName       string     `db:"full_name"`
	Email          *string    `db:"email"`
	RoleID         int64      `db:"role_id"`
	FailedAttempts int        `db:"failed_attempts"`
	Locked         bool       `db:"locked"`
	Active         bool       `db:"active"`
	CreatedAt      time.Time  `db:"created_at"`
	LastAccessAt   *time.Time `db:"last_access_at"`
	AvatarURL      *string    `db:"avatar_url"`
}

// Profile is the projection returned to clients; it never carries the hash.
type Profile struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Email          *string    `json:"email,omitempty"`
	RoleID         int64      `json:"role_id"`
	FailedAttempts int        `json:"failed_attempts"`
	Locked         bool       `json:"locked"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessAt   *time.Time `json:"last_access_at,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		Email:          u.Email,
		RoleID:         u.RoleID,
		FailedAttempts: u.FailedAttempts,
		Locked:         u.Locked,
		Active:         u.Active,
		CreatedAt:      u.CreatedAt,
		LastAccessAt:   u.LastAccessAt,
		AvatarURL:      u.AvatarURL,
	}
}

// ProfileChanges is a partial update of a user. Nil fields are left as
// they are.
type ProfileChanges struct {
	FullName  *string `json:"full_name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
	RoleID    *int64  `json:"role_id"`
	Active    *bool   `json:"active"`
}
