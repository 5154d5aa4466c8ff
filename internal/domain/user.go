package domain

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered identity as persisted in the users key.
type User struct {
	ID           string `json:"id"`           // Unique identifier
	Name         string `json:"name"`         // Display name
	Email        string `json:"email"`        // Login email, compared case-insensitively
	PasswordHash string `json:"passwordHash"` // bcrypt hash
	Role         string `json:"role"`         // RoleUser or RoleAdmin
	CreatedAt    int64  `json:"createdAt"`    // Unix milliseconds of account creation
}

// IsAdmin reports whether the user may perform catalog administration.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserResponse is the public view of a user, without credential material.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Response converts the user into its public view.
func (u User) Response() UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
