package model

// User is owned by the user store. Scopes keep their stored order: permission
// matching picks the first scope that prefixes the route scope.
type User struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Name         string   `json:"name"`
	Scopes       []string `json:"scopes"`
}

// UserProfile is a User without its password hash.
type UserProfile struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Scopes   []string `json:"scopes"`
}

func (u User) Profile() UserProfile {
	scopes := make([]string, len(u.Scopes))
	copy(scopes, u.Scopes)

	return UserProfile{ID: u.ID, Username: u.Username, Name: u.Name, Scopes: scopes}
}

type UserFilter struct {
	IDs       []int64
	Usernames []string
	Names     []string
	Scopes    []string
}

type CreateUser struct {
	Username string   `json:"username" validate:"required,max=255"`
	Password string   `json:"password" validate:"required,min=8"`
	Name     string   `json:"name" validate:"required,max=255"`
	Scopes   []string `json:"scopes" validate:"dive,required"`
}

type UpdateUser struct {
	Username string   `json:"username" validate:"required,max=255"`
	Name     string   `json:"name" validate:"required,max=255"`
	Scopes   []string `json:"scopes" validate:"dive,required"`
}

type UpdatePassword struct {
	Password string `json:"password" validate:"required,min=8"`
}
