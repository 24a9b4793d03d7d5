package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Rule violations detected inside repository transactions.
var (
	ErrAlreadyMember = errors.New("user already belongs to a group")
	ErrGroupFull     = errors.New("group member limit reached")
	ErrSlotTaken     = errors.New("schedule slot already taken")
	ErrAttachLimit   = errors.New("event attachment limit reached")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
