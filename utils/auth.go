package utils

import (
	"slices"

	"github.com/cancetinn/ldm-discord/model"
)

// CheckAuth reports whether userID is a configured developer or holds one of the admin roles.
func CheckAuth(auth model.Auth, userID string, roles []string) bool {
	if slices.Contains(auth.Developers, userID) {
		return true
	}

	for _, role := range roles {
		if slices.Contains(auth.AdminRoles, role) {
			return true
		}
	}

	return false
}
