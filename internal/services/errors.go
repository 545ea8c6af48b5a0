package services

import (
	stderrors "errors"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/repository"
)

// Service errors
var (
	ErrSessionNotFound     = errors.NotFound("Session not found")
	ErrCompetitionNotFound = errors.NotFound("Competition not found")
	ErrOptionNotFound      = errors.NotFound("Option not found")
	ErrConcurrentUpdate    = errors.Conflict("The record was changed by someone else, please retry")
	ErrHostOnly            = errors.Forbidden("Only the host can do this")
	ErrStaffOnly           = errors.Forbidden("Only the host or a moderator can do this")
)

// mapRepoError converts repository sentinels into application errors.
// notFound is returned for ErrNotFound; other failures become Internal.
func mapRepoError(err error, notFound *errors.Error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return err
	}
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return notFound
	case stderrors.Is(err, repository.ErrStaleVersion):
		return ErrConcurrentUpdate
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.Wrap(err, errors.ErrConflict, "Record already exists")
	default:
		return errors.Internal(err)
	}
}
