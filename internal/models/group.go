package models

import "time"

// DefaultMaxMembers applies when a group is created without an explicit cap.
const DefaultMaxMembers = 25

// Group is a student group with exactly one admin.
type Group struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	University  *string   `db:"university" json:"university"`
	AdminPhone  string    `db:"admin_phone" json:"admin"`
	MaxMembers  int       `db:"max_members" json:"maxMembers"`
	InviteToken *string   `db:"invite_token" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// GroupDetail is the group record returned to members.
type GroupDetail struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	University  *string  `json:"university"`
	Admin       string   `json:"admin"`
	MemberCount int      `json:"memberCount"`
	MaxMembers  int      `json:"maxMembers"`
	IsAdmin     bool     `json:"isAdmin"`
	InviteLink  string   `json:"inviteLink"`
	InviteToken string   `json:"inviteToken"`
	Members     []string `json:"members"`
}

// InvitePreview summarises a group before joining it.
type InvitePreview struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	University  *string `json:"university"`
	MemberCount int     `json:"memberCount"`
	MaxMembers  int     `json:"maxMembers"`
	AdminPhone  string  `json:"adminPhone"`
}
