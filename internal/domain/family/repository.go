package family

import "context"

// Repository reads family data for the generation pipeline.
type Repository interface {
	// GetChild loads a child profile. Returns shared.ErrChildNotFound when
	// the child does not exist.
	GetChild(ctx context.Context, id int64) (*ChildProfile, error)

	// GetParent loads a parent account. Returns shared.ErrParentNotFound
	// when the account does not exist.
	GetParent(ctx context.Context, id int64) (*ParentAccount, error)
}
