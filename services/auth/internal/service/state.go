package service

type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshPending
	StateRevoked
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshPending:
		return "refresh_pending"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

type LogoutStatus string

const (
	LogoutRevoked          LogoutStatus = "logged_out"
	LogoutAlreadyLoggedOut LogoutStatus = "already_logged_out"
)
