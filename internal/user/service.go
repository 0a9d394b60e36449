package user

import (
	"context"
	"errors"
	"log/slog"

	"chatsync/internal/apperr"

	"github.com/samber/lo"
)

// Service maintains the contact graph. Edges are one-directional: adding B to A's
// contacts gives B nothing and does not notify B.
type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) AddContact(ctx context.Context, ownerID, contactEmail string) error {
	email := NormalizeEmail(contactEmail)
	if email == "" {
		return apperr.Validation("contact email is required")
	}

	contact, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("no user with that email")
		}
		return apperr.Internal(err)
	}
	if contact.ID == ownerID {
		return ErrSelfContact
	}

	owner, err := s.repo.GetUser(ctx, ownerID)
	if err != nil {
		return apperr.Internal(err)
	}
	if lo.Contains(owner.ContactIDs, contact.ID) {
		return ErrDuplicateContact
	}

	if err := s.repo.AddContact(ctx, ownerID, contact.ID); err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("contact.add", "owner_id", ownerID, "contact_id", contact.ID)
	return nil
}

func (s *Service) ListContacts(ctx context.Context, ownerID string) ([]Summary, error) {
	contacts, err := s.repo.ListContacts(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if contacts == nil {
		contacts = []Summary{}
	}
	return contacts, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, apperr.Internal(err)
	}
	return u, nil
}
