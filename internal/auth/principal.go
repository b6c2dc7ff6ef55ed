package auth

import (
	"context"
	"fmt"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Principal is the caller of an operation: either an administrator or a customer.
type Principal struct {
	Role Role
	ID   int64
}

func Admin(id int64) Principal    { return Principal{Role: RoleAdmin, ID: id} }
func Customer(id int64) Principal { return Principal{Role: RoleCustomer, ID: id} }

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }

func (p Principal) String() string { return fmt.Sprintf("%s:%d", p.Role, p.ID) }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
