package services

import (
	"strings"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

// Panel roles sort by a fixed priority so the pair (A, B) and (B, A) resolve
// to the same conversation type.
var rolePriority = map[string]int{
	models.RoleGuest: 0,
	models.RoleHost:  1,
	models.RoleAdmin: 2,
}

// ResolveConversationType canonicalizes a two-party chat pair. It is pure and
// commutative; same-role pairs are invalid.
func ResolveConversationType(panelA, panelB string) (string, error) {
	pa, okA := rolePriority[panelA]
	pb, okB := rolePriority[panelB]
	if !okA || !okB || panelA == panelB {
		return "", ErrInvalidInput
	}

	if pa > pb {
		panelA, panelB = panelB, panelA
	}
	return panelA + "-" + panelB, nil
}

// AuthorizeInitiation enforces who may open a conversation with whom:
// guests reach hosts or the admin, hosts reach only the admin, and the admin
// never initiates. The matrix is deliberately asymmetric.
func AuthorizeInitiation(initiatorRole, receiverRole string) error {
	if initiatorRole == receiverRole {
		return ErrInvalidInput
	}
	if !models.ValidRole(initiatorRole) || !models.ValidRole(receiverRole) {
		return ErrInvalidInput
	}

	switch initiatorRole {
	case models.RoleGuest:
		return nil
	case models.RoleHost:
		if receiverRole == models.RoleAdmin {
			return nil
		}
	}
	return ErrForbidden
}

// CounterpartRole derives the peer's role from a conversation type and the
// caller's own role.
func CounterpartRole(conversationType, ownRole string) string {
	parts := strings.SplitN(conversationType, "-", 2)
	if len(parts) != 2 {
		return ""
	}
	if parts[0] == ownRole {
		return parts[1]
	}
	return parts[0]
}
