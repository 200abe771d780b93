package domain

// Role is the account role granted by the backend.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the profile returned by login and registration.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Address string `json:"address"`
}

// TokenPair holds the bearer tokens issued on login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the data payload of the login and register endpoints.
type LoginResult struct {
	User  User      `json:"user"`
	Token TokenPair `json:"token"`
}

// RegisterRequest is the sign-up form. ConfirmPassword is checked locally and
// never sent.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=4"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
	Address         string `json:"address" validate:"required"`
	Role            Role   `json:"role,omitempty" validate:"omitempty,oneof=USER ADMIN"`
}

// Session is the single authenticated identity of a client.
type Session struct {
	UserEmail    string `json:"userEmail"`
	DisplayName  string `json:"displayName"`
	Role         Role   `json:"role"`
	Address      string `json:"address,omitempty"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// NewSession builds a session from a login payload.
func NewSession(r LoginResult) Session {
	return Session{
		UserEmail:    r.User.Email,
		DisplayName:  r.User.Name,
		Role:         r.User.Role,
		Address:      r.User.Address,
		AccessToken:  r.Token.AccessToken,
		RefreshToken: r.Token.RefreshToken,
	}
}

// IsAuthenticated reports whether an access token is present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// IsAdmin reports whether the session's role is ADMIN.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// User returns the profile part of the session.
func (s Session) User() User {
	return User{Name: s.DisplayName, Email: s.UserEmail, Role: s.Role, Address: s.Address}
}
