package usecase

import (
	authdomain "todo-assist-backend/internal/auth/domain"
	authdto "todo-assist-backend/internal/auth/dto"
)

// AuthUsecase defines the authentication business logic
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	// ValidateToken verifies an access token and loads its user
	ValidateToken(token string) (*authdomain.User, error)
	// ChangePlan moves a user to another subscription plan
	ChangePlan(userID, plan string) (*authdomain.User, error)
}
