// Package setup bootstraps a new tenant: its company row, the first admin
// account and default settings.
package setup

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-crm/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
)

// Request is the payload for POST /api/setup.
type Request struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	AdminName   string `json:"adminName" validate:"required,max=200"`
	AdminEmail  string `json:"adminEmail" validate:"required,email,max=200"`
	Password    string `json:"password" validate:"required,min=8,max=72" trim:"-"`
	Timezone    string `json:"timezone" validate:"omitempty,timezone"`
}

// Tenant is everything written in one setup transaction.
type Tenant struct {
	CompanyID    uuid.UUID
	CompanyName  string
	AdminID      uuid.UUID
	AdminName    string
	AdminEmail   string
	PasswordHash string
	Timezone     string
}

// Result identifies the created tenant.
type Result struct {
	CompanyID uuid.UUID `json:"companyId"`
	AdminID   uuid.UUID `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists a tenant atomically.
type Store interface {
	Bootstrap(ctx context.Context, t Tenant) error
}

// Service authorises and performs tenant setup.
type Service struct {
	store      Store
	token      string
	bcryptCost int
	now        func() time.Time
}

// NewService constructs the service. An empty token disables setup entirely.
func NewService(store Store, token string) *Service {
	return &Service{
		store:      store,
		token:      token,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a setup token is configured.
func (s *Service) Enabled() bool { return s.token != "" }

// Authorize checks the presented setup token.
func (s *Service) Authorize(presented string) error {
	if !s.Enabled() {
		return fmt.Errorf("%w: setup disabled", httpx.ErrForbidden)
	}
	if presented == "" {
		return httpx.ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
		return httpx.ErrForbidden
	}
	return nil
}

// Create provisions a company with its first admin.
func (s *Service) Create(ctx context.Context, token string, req Request) (*Result, error) {
	if err := s.Authorize(token); err != nil {
		return nil, err
	}
	if err := shared.Validate(&req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	t := Tenant{
		CompanyID:    uuid.New(),
		CompanyName:  strings.TrimSpace(req.CompanyName),
		AdminID:      uuid.New(),
		AdminName:    strings.TrimSpace(req.AdminName),
		AdminEmail:   strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		PasswordHash: string(hash),
		Timezone:     tz,
	}
	if err := s.store.Bootstrap(ctx, t); err != nil {
		return nil, err
	}
	return &Result{CompanyID: t.CompanyID, AdminID: t.AdminID, CreatedAt: s.now()}, nil
}
