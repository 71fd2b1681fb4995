package service

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// ContactInput is the writable shape shared by agents and customers.
type ContactInput struct {
	Name  string
	Email string
	Phone *string
}

// ContactPatch updates any subset of a contact's fields.
type ContactPatch struct {
	Name  *string
	Email *string
	Phone *string
}

func normalizeContact(in ContactInput) (ContactInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	details := map[string]any{}
	if in.Name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(details) > 0 {
		return in, apperrors.NewValidationError("invalid contact", details)
	}
	return in, nil
}

func (p ContactPatch) apply(in ContactInput) ContactInput {
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Email != nil {
		in.Email = *p.Email
	}
	if p.Phone != nil {
		in.Phone = p.Phone
	}
	return in
}

func notFound(err error, resource string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}
