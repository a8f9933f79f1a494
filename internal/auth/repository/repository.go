package repository

import authdomain "todo-assist-backend/internal/auth/domain"

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(user *authdomain.User) error
	// FindByEmail returns nil, nil when no user matches
	FindByEmail(email string) (*authdomain.User, error)
	// FindByID returns nil, nil when no user matches
	FindByID(id string) (*authdomain.User, error)
	UpdatePlan(userID, plan string) error
	// PlanForUser returns the user's subscription plan, "free" when unknown
	PlanForUser(userID string) (string, error)
}
