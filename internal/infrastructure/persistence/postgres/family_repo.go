package postgres

import (
	"context"

	"github.com/kidsbank/quizhub/internal/domain/family"
	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// FamilyRepository reads parent accounts and child profiles.
type FamilyRepository struct {
	conn *Connection
}

// NewFamilyRepository creates a new family repository.
func NewFamilyRepository(conn *Connection) *FamilyRepository {
	return &FamilyRepository{conn: conn}
}

const getChildSQL = `
	SELECT id, parent_id, name, age, created_at
	FROM child_profiles
	WHERE id = $1`

// GetChild loads a child profile by ID.
func (r *FamilyRepository) GetChild(ctx context.Context, id int64) (*family.ChildProfile, error) {
	var c family.ChildProfile
	err := r.conn.QueryRow(ctx, getChildSQL, id).Scan(
		&c.ID,
		&c.ParentID,
		&c.Name,
		&c.Age,
		&c.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChildNotFound
		}
		return nil, shared.WrapError("family", "GetChild", shared.ErrPersistence, "failed to load child profile", err)
	}
	return &c, nil
}

const getParentSQL = `
	SELECT id, name, phone, (balance * 100)::bigint, created_at
	FROM parent_accounts
	WHERE id = $1`

// GetParent loads a parent account by ID.
func (r *FamilyRepository) GetParent(ctx context.Context, id int64) (*family.ParentAccount, error) {
	var p family.ParentAccount
	err := r.conn.QueryRow(ctx, getParentSQL, id).Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Balance,
		&p.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrParentNotFound
		}
		return nil, shared.WrapError("family", "GetParent", shared.ErrPersistence, "failed to load parent account", err)
	}
	return &p, nil
}
