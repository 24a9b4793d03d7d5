package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/otp"
	"github.com/noah-isme/studygroup-api/pkg/sms"
)

type authUserRepository interface {
	Upsert(ctx context.Context, phone, defaultName, name string) (*models.User, error)
	GetSession(ctx context.Context, phone string) (*models.Session, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService handles code login, token issuance and session derivation.
type AuthService struct {
	users     authUserRepository
	codes     otp.Store
	sender    sms.Sender
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, codes otp.Store, sender sms.Sender, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 30 * 24 * time.Hour
	}
	return &AuthService{users: users, codes: codes, sender: sender, validator: validate, logger: logger, config: config}
}

// RequestCode issues a fresh code for the phone, replacing any outstanding one,
// and hands it to the SMS sender.
func (s *AuthService) RequestCode(ctx context.Context, req dto.RequestCodeRequest) (*dto.RequestCodeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid code request payload")
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	code, expiresAt, err := s.codes.Issue(ctx, phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue verification code")
	}
	if err := s.sender.Send(ctx, sms.Message{Phone: phone, Body: sms.VerificationText(code)}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send verification code")
	}

	s.logger.Info("verification code issued", zap.String("phone", sms.MaskPhone(phone)))
	return &dto.RequestCodeResponse{
		Phone:     phone,
		ExpiresIn: int(time.Until(expiresAt).Round(time.Second).Seconds()),
	}, nil
}

// Verify consumes the code, creates the user on first login and issues a token.
func (s *AuthService) Verify(ctx context.Context, req dto.VerifyCodeRequest) (*dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if err := s.codes.Consume(ctx, phone, strings.TrimSpace(req.Code)); err != nil {
		if errors.Is(err, otp.ErrCodeInvalid) || errors.Is(err, otp.ErrCodeExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidCode.Code, appErrors.ErrInvalidCode.Status, appErrors.ErrInvalidCode.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify code")
	}

	if _, err := s.users.Upsert(ctx, phone, models.DefaultUserName(phone), strings.TrimSpace(req.Name)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save user")
	}
	return s.issue(ctx, phone)
}

// Session re-derives the caller's group facts from the store.
func (s *AuthService) Session(ctx context.Context, phone string) (*models.Session, error) {
	session, err := s.users.GetSession(ctx, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Refresh re-issues the access token with a fresh session snapshot.
func (s *AuthService) Refresh(ctx context.Context, phone string) (*dto.AuthResponse, error) {
	return s.issue(ctx, phone)
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.Phone == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) issue(ctx context.Context, phone string) (*dto.AuthResponse, error) {
	session, err := s.Session(ctx, phone)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.generateAccessToken(phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &dto.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Session:     session,
	}, nil
}

func (s *AuthService) generateAccessToken(phone string) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   phone,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
