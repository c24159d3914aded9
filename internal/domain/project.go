package domain

import "time"

// MemberRole represents a user's role within a project.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	UserID string     `json:"user_id"`
	Role   MemberRole `json:"role"`
}

// ProjectStatus is a single column in a project's board.
type ProjectStatus struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Project represents an isolated board owned by a user.
type Project struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	Members     []ProjectMember
	Statuses    []ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultStatuses returns the board columns assigned to new projects.
func DefaultStatuses() []ProjectStatus {
	return []ProjectStatus{
		{Name: "To Do", Order: 0},
		{Name: "In Progress", Order: 1},
		{Name: "Done", Order: 2},
	}
}

// IsOwner checks if the given user owns the project.
func (p *Project) IsOwner(userID string) bool {
	return p.OwnerID == userID
}

// IsMember checks if the given user is the owner or a member of the project.
func (p *Project) IsMember(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// HasStatus checks if the given status name exists on the board.
func (p *Project) HasStatus(name string) bool {
	for _, s := range p.Statuses {
		if s.Name == name {
			return true
		}
	}
	return false
}
