package domain

import "github.com/pkg/errors"

// Role закрытое множество ролей: покупатель, продавец, администратор.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleSeller
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleSeller:
		return "seller"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "seller":
		return RoleSeller, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, errors.Wrapf(ErrUnauthenticated, "unknown role %q", s)
}

// Actor аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	ID   string
	Role Role
}
