package model

// TokenCredentials is produced once the request carrier has been authenticated
// against a live session.
type TokenCredentials struct {
	Scheme  string  `json:"scheme"`
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

type UserCredentials struct {
	TokenCredentials
	User User `json:"user"`
}

type PermissionCredentials struct {
	UserCredentials
	RouteScope   string `json:"route_scope"`
	MatchedScope string `json:"matched_scope"`
}
