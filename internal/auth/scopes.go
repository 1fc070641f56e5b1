package auth

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopeRead    = "homeops:read"
	ScopeWrite   = "homeops:write"
)

// AllScopes defines the full set of scopes requested by the admin frontend.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeRead,
	ScopeWrite,
}
