package enums

import "fmt"

// ActorRole identifies who is calling the API: a marketplace customer, a
// store operator, or a platform admin.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleStore    ActorRole = "store"
	ActorRoleAdmin    ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleStore,
	ActorRoleAdmin,
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if r == candidate {
			return true
		}
	}
	return false
}

// ParseActorRole converts a raw string into an ActorRole.
func ParseActorRole(raw string) (ActorRole, error) {
	role := ActorRole(raw)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", raw)
	}
	return role, nil
}
