package service

import (
	"context"
	"regexp"
	"strings"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
)

var beuidPattern = regexp.MustCompile(`^BE[0-9]{6,}$`)

// BEUIDStore maps short identifiers to wallet addresses
type BEUIDStore interface {
	Register(ctx context.Context, address string) (*models.BEUID, error)
	Lookup(ctx context.Context, address string) (*models.BEUID, error)
	Resolve(ctx context.Context, uid string) (*models.BEUID, error)
}

// BEUIDService issues and resolves BEUIDs
type BEUIDService struct {
	store BEUIDStore
}

// NewBEUIDService creates a new BEUID service
func NewBEUIDService(store BEUIDStore) *BEUIDService {
	return &BEUIDService{store: store}
}

// Register returns the address's BEUID, issuing one on first call
func (s *BEUIDService) Register(ctx context.Context, address string) (*models.BEUID, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.Register(ctx, addr)
}

// Lookup returns the BEUID issued to an address
func (s *BEUIDService) Lookup(ctx context.Context, address string) (*models.BEUID, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.Lookup(ctx, addr)
}

// Resolve returns the record for a BEUID; lookup is case-insensitive
func (s *BEUIDService) Resolve(ctx context.Context, uid string) (*models.BEUID, error) {
	uid = strings.ToUpper(strings.TrimSpace(uid))
	if uid == "" {
		return nil, apperrors.NewValidationError("uid", "required")
	}
	if !beuidPattern.MatchString(uid) {
		return nil, apperrors.NewValidationError("uid", "must be BE followed by digits")
	}
	return s.store.Resolve(ctx, uid)
}
