package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	audit  shared.AuditSink
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, audit shared.AuditSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// dummyHash keeps the timing of unknown-email logins close to wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("odyssey-crm-dummy"), bcrypt.DefaultCost)

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			s.logger.Error("auth lookup", slog.Any("error", err))
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch login", slog.Any("error", err))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: user.CompanyID,
			ActorID:   user.ID,
			Action:    shared.ActionLogin,
			Entity:    "user",
			EntityID:  user.ID.String(),
		}); err != nil {
			s.logger.Warn("audit login", slog.Any("error", err))
		}
	}
	return user, nil
}

// Principal loads the current actor for userID. Missing or deactivated accounts
// yield (nil, nil) so the request continues unauthenticated.
func (s *Service) Principal(ctx context.Context, userID uuid.UUID) (*rbac.Principal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: load principal: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}
	p := user.Principal()
	return &p, nil
}
