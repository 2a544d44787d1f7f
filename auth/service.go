package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrAgencyRequired signals an agency-scoped role registered without an agency.
	ErrAgencyRequired = errors.New("auth: agency_admin and agent roles require an agency")
	// ErrInactive signals the account has been deactivated.
	ErrInactive = errors.New("auth: account is deactivated")
)

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	jwtSecret []byte
}

// LoginResult bundles the token and domain actor returned after a successful login.
type LoginResult struct {
	Token string
	Actor Actor
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new actor account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Actor, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("auth: email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleAgent
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}
	if role.AgencyScoped() && (req.AgencyID == nil || *req.AgencyID == "") {
		return nil, ErrAgencyRequired
	}

	actor, err := s.repo.CreateActor(ctx, CreateActorParams{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         role,
		AgencyID:     req.AgencyID,
	})
	if err != nil {
		return nil, err
	}

	return &actor, nil
}

// Login authenticates an actor and returns a JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	actor, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !actor.Active {
		return LoginResult{}, ErrInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(actor)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		Actor: actor,
	}, nil
}

// GetByID retrieves an actor by id.
func (s *Service) GetByID(ctx context.Context, actorID string) (*Actor, error) {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// VerifyToken validates a JWT token and returns the embedded actor identity.
func (s *Service) VerifyToken(tokenString string) (string, Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		actorID, ok := claims["actor_id"].(string)
		if !ok {
			return "", "", fmt.Errorf("auth: invalid actor_id in token")
		}
		roleStr, ok := claims["role"].(string)
		if !ok {
			return "", "", fmt.Errorf("auth: invalid role in token")
		}
		role := Role(roleStr)
		if !isValidRole(role) {
			return "", "", fmt.Errorf("auth: invalid role %q in token", roleStr)
		}
		return actorID, role, nil
	}

	return "", "", fmt.Errorf("auth: invalid token")
}

// generateToken creates a JWT token for the actor.
func (s *Service) generateToken(actor Actor) (string, error) {
	claims := jwt.MapClaims{
		"actor_id": actor.ID,
		"role":     actor.Role,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	if actor.AgencyID != nil {
		claims["agency_id"] = *actor.AgencyID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func isValidRole(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleStaff, RoleAgencyAdmin, RoleAgent, RoleCustomer:
		return true
	}
	return false
}
