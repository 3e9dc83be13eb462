package poller

type AuthState int32

const (
	StateUnauthenticated AuthState = iota
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}
