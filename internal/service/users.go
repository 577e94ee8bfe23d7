package service

import (
	"context"
	"fmt"
	"strings"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Me возвращает профиль вызывающего.
func (s *Service) Me(ctx context.Context, p *imodels.Principal) (*models.User, error) {
	const op = "service.users.Me"

	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := s.storage.UserByID(ctx, p.UserID)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	return user, nil
}

// UpdateProfile частично обновляет профиль; пустая строка очищает avatar и bio.
func (s *Service) UpdateProfile(ctx context.Context, p *imodels.Principal, in models.UpdateProfileInput) (*models.User, error) {
	const op = "service.users.UpdateProfile"

	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := s.storage.UserByID(ctx, p.UserID)
	if err != nil {
		return nil, storageErr(op, err, "id")
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := validateUsername(name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		user.Username = name
	}

	if in.Avatar != nil {
		if user.Avatar, err = optionalURL("avatar", in.Avatar); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if in.Bio != nil {
		if user.Bio, err = optionalText("bio", in.Bio, maxBio); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	user.UpdatedAt = s.now()

	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return nil, storageErr(op, err, "username")
	}

	return user, nil
}
