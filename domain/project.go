package domain

import "time"

// Project groups tasks and members. Owned by the remote store.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectPatch is a partial project update.
type ProjectPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p ProjectPatch) Validate() error {
	if p.Name == nil && p.Description == nil {
		return ErrInvalidArgs
	}
	if p.Name != nil && *p.Name == "" {
		return ErrInvalidArgs
	}
	return nil
}

// Apply merges the patch into a copy of pr.
func (p ProjectPatch) Apply(pr Project) Project {
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Description != nil {
		desc := *p.Description
		pr.Description = &desc
	}
	return pr
}

// TeamMember is a user with access to a project. Online is never tracked and
// stays false.
type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
	Online bool   `json:"isOnline"`
}
