package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/config"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/monitoring"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/repository"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// Service implements authentication and session management
type Service struct {
	config          *config.JWTConfig
	logger          *logger.Logger
	userRepo        repository.UserRepositoryInterface
	passwordManager interfaces.PasswordManager
	revocations     interfaces.TokenRevocationStore
}

// NewService creates a new auth service instance
func NewService(
	cfg *config.JWTConfig,
	log *logger.Logger,
	userRepo repository.UserRepositoryInterface,
	passwordManager interfaces.PasswordManager,
	revocations interfaces.TokenRevocationStore,
) *Service {
	return &Service{
		config:          cfg,
		logger:          log,
		userRepo:        userRepo,
		passwordManager: passwordManager,
		revocations:     revocations,
	}
}

// Register registers a new user (patient or doctor)
func (s *Service) Register(ctx context.Context, req *types.RegisterRequest) (*types.UserProfile, error) {
	if err := s.validateRegistration(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		monitoring.RecordAuthAttempt("register", "conflict")
		return nil, types.NewConflictError(types.ErrCodeUserExists, "该 ID 已被注册")
	}

	passwordHash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &types.UserProfile{
		ID:               req.ID,
		Role:             req.Role,
		Name:             req.Name,
		Gender:           req.Gender,
		Age:              req.Age,
		Phone:            req.Phone,
		Department:       req.Department,
		Title:            req.Title,
		Hospital:         req.Hospital,
		Specialties:      req.Specialties,
		RegistrationDate: time.Now().Format("2006-01-02"),
	}

	if err := s.userRepo.Create(ctx, profile, passwordHash); err != nil {
		monitoring.RecordAuthAttempt("register", "error")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	monitoring.RecordAuthAttempt("register", "ok")
	s.logger.Audit(profile.ID, "register", "profile", true, map[string]interface{}{"role": profile.Role})
	return profile, nil
}

// Login authenticates a user and issues a JWT bearer token
func (s *Service) Login(ctx context.Context, req *types.LoginRequest) (*types.TokenResponse, error) {
	profile, passwordHash, err := s.userRepo.GetByID(ctx, req.ID)
	if err != nil {
		monitoring.RecordAuthAttempt("login", "unknown_user")
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "账号或密码错误 (未注册请先注册)")
	}

	ok, err := s.passwordManager.VerifyPassword(passwordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		monitoring.RecordAuthAttempt("login", "bad_password")
		s.logger.Audit(req.ID, "login", "session", false, nil)
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "账号或密码错误 (未注册请先注册)")
	}

	if profile.Role != req.Role {
		monitoring.RecordAuthAttempt("login", "role_mismatch")
		msg := "该账号不是患者账号"
		if req.Role == types.RoleDoctor {
			msg = "该账号不是医生账号"
		}
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, msg)
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	monitoring.RecordAuthAttempt("login", "ok")
	s.logger.Audit(profile.ID, "login", "session", true, nil)

	return &types.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        profile,
	}, nil
}

// GetProfile returns the profile for a user ID
func (s *Service) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	profile, _, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Logout revokes the given token for its remaining lifetime
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		// An invalid token needs no revocation
		return nil
	}

	ttl := s.config.AccessTokenTTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if remaining := int(time.Until(exp.Time).Seconds()); remaining > 0 {
			ttl = remaining
		}
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}

	if err := s.revocations.Revoke(ctx, jti, ttl); err != nil {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}

	return nil
}

// ValidateToken validates a bearer token and resolves its user profile
func (s *Service) ValidateToken(ctx context.Context, token string) (*types.UserProfile, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "无效的 Token")
	}

	if jti, _ := claims["jti"].(string); jti != "" && s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, jti)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to check token revocation, continuing")
		} else if revoked {
			return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "Token 已失效")
		}
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "无效的认证信息")
	}

	return s.GetProfile(ctx, userID)
}

// issueToken creates a signed JWT for the given profile
func (s *Service) issueToken(profile *types.UserProfile) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  profile.ID,
		"role": string(profile.Role),
		"jti":  uuid.New().String(),
		"iss":  s.config.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Duration(s.config.AccessTokenTTL) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// parseToken validates the signature and expiry of a token and returns
// its claims
func (s *Service) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// validateRegistration checks required registration fields
func (s *Service) validateRegistration(req *types.RegisterRequest) error {
	if req.ID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "ID is required")
	}
	if len(req.Password) < 8 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "password must be at least 8 characters")
	}
	if !req.Role.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "role must be DOCTOR or PATIENT")
	}
	if req.Name == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "name is required")
	}
	if req.Age < 0 || req.Age > 120 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "age must be between 0 and 120")
	}
	return nil
}
