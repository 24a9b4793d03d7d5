package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries only the phone. Group facts are never embedded in the
// token; they are re-derived into a Session on every request.
type JWTClaims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// Session is the per-request view of the caller, read through from the store.
type Session struct {
	Phone        string  `db:"phone" json:"phone"`
	Name         string  `db:"name" json:"name"`
	GroupID      *int64  `db:"group_id" json:"groupId"`
	GroupName    *string `db:"group_name" json:"groupName"`
	University   *string `db:"university" json:"university"`
	IsGroupAdmin bool    `db:"is_group_admin" json:"isGroupAdmin"`
	MemberCount  *int    `db:"member_count" json:"memberCount"`
}

// InGroup reports whether the caller belongs to the group.
func (s *Session) InGroup(groupID int64) bool {
	return s != nil && s.GroupID != nil && *s.GroupID == groupID
}

// HasGroup reports whether the caller belongs to any group.
func (s *Session) HasGroup() bool {
	return s != nil && s.GroupID != nil
}

// AdminOf reports whether the caller administers the group.
func (s *Session) AdminOf(groupID int64) bool {
	return s.InGroup(groupID) && s.IsGroupAdmin
}
