// Package scope решает, какие заказы видит пользователь и какие действия над ними ему разрешены.
package scope

import (
	"github.com/pkg/errors"

	"github.com/example/storefront-order-service/internal/domain"
)

// ListFilter фильтр выборки, который передаётся в хранилище. Область видимости
// применяется в запросе, а не после загрузки всех заказов.
func ListFilter(a domain.Actor) (domain.OrderFilter, error) {
	switch a.Role {
	case domain.RoleAdmin:
		return domain.OrderFilter{}, nil
	case domain.RoleSeller:
		return domain.OrderFilter{UploaderID: a.ID}, nil
	case domain.RoleCustomer:
		return domain.OrderFilter{CustomerID: a.ID}, nil
	}
	return domain.OrderFilter{}, errors.Wrapf(domain.ErrForbidden, "role %s", a.Role)
}

// OwnFilter заказы, оформленные самим пользователем, независимо от роли.
func OwnFilter(a domain.Actor) domain.OrderFilter {
	return domain.OrderFilter{CustomerID: a.ID}
}

// CanView разрешает просмотр администратору, покупателю заказа и продавцу,
// выставившему первую позицию заказа.
func CanView(a domain.Actor, o domain.Order) error {
	if a.ID != "" && o.CustomerID == a.ID {
		return nil
	}
	switch a.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSeller:
		if o.UploaderID == a.ID {
			return nil
		}
	case domain.RoleCustomer:
	}
	return domain.ErrForbidden
}

// CanPay оплатить заказ может только его покупатель.
func CanPay(a domain.Actor, o domain.Order) error {
	if a.ID == "" || o.CustomerID != a.ID {
		return domain.ErrForbidden
	}
	return nil
}

// CanDeliver отметить доставку может администратор или продавец заказа.
func CanDeliver(a domain.Actor, o domain.Order) error {
	switch a.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSeller:
		if o.UploaderID == a.ID {
			return nil
		}
	case domain.RoleCustomer:
	}
	return domain.ErrForbidden
}

// CanReport отчёты по выручке доступны только администратору.
func CanReport(a domain.Actor) error {
	if a.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}
