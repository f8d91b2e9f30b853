package model

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleFarmer   Role = "FARMER"
	RoleRetailer Role = "RETAILER"
)

var roles = map[Role]bool{
	RoleAdmin:    true,
	RoleFarmer:   true,
	RoleRetailer: true,
}

// ParseRole validates s against the closed role set. Matching is
// case-sensitive: "farmer" is not a role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, roles[r]
}

type UserStatus string

const (
	UserStatusPendingApproval UserStatus = "PENDING_APPROVAL"
	UserStatusApproved        UserStatus = "APPROVED"
	UserStatusRejected        UserStatus = "REJECTED"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusPending:   true,
	OrderStatusConfirmed: true,
	OrderStatusShipped:   true,
	OrderStatusDelivered: true,
	OrderStatusCancelled: true,
}

// ParseOrderStatus validates s against the closed status set,
// case-sensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	return st, orderStatuses[st]
}
