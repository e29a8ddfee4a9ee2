package auth

import "log/slog"

type authenticator struct {
	allowedUserIDs []int64
}

// NewAuthenticator builds the fixed allow-list gate. The list is small and
// trusted; there is no dynamic management.
func NewAuthenticator(allowedUserIDs []int64) *authenticator {
	slog.Info("authorized user IDs", "user_ids", allowedUserIDs)

	return &authenticator{
		allowedUserIDs: allowedUserIDs,
	}
}

func (a *authenticator) IsAuthorized(userID int64) bool {
	for _, id := range a.allowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}
