package dto

// CreateGroupRequest defines payload for creating a group.
type CreateGroupRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	University *string `json:"university" validate:"omitempty,max=200"`
}

// JoinGroupRequest carries an invite token or bare group id.
type JoinGroupRequest struct {
	Invite string `json:"invite" validate:"required"`
}

// TransferAdminRequest names the member receiving admin rights.
type TransferAdminRequest struct {
	NewAdminPhone string `json:"newAdminPhone" validate:"required"`
}
