package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/middleware"
	"github.com/mcp-registry/backend/internal/models"
)

// Service resolves a bearer token to a Principal: validates the token,
// mirrors the account into the users table, and syncs the admin flag from
// the provider's group claim. The admin group is the sole source of the
// admin role; the service never computes it from local state.
type Service struct {
	tokens       *TokenService
	repo         *Repository
	adminGroupID string
	logger       *zap.Logger
}

// NewService creates an authentication service.
func NewService(tokens *TokenService, repo *Repository, adminGroupID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tokens: tokens, repo: repo, adminGroupID: adminGroupID, logger: logger}
}

// Authenticate validates the token and returns the request principal.
func (s *Service) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return models.Principal{}, err
	}

	user, err := s.repo.Upsert(ctx, claims.Subject, claims.Email, claims.Name)
	if err != nil {
		return models.Principal{}, fmt.Errorf("upsert user: %w: %v", middleware.ErrAuthUnavailable, err)
	}

	isAdmin := claims.InGroup(s.adminGroupID)
	if user.IsAdmin != isAdmin {
		s.logger.Info("syncing admin flag",
			zap.String("user_id", user.ID.String()),
			zap.Bool("is_admin", isAdmin))
		if err := s.repo.SyncAdmin(ctx, user.ID, isAdmin); err != nil {
			return models.Principal{}, fmt.Errorf("sync admin flag: %w: %v", middleware.ErrAuthUnavailable, err)
		}
		user.IsAdmin = isAdmin
	}

	return user.Principal(), nil
}
