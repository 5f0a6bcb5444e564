// Package family holds the parent and child aggregates the quiz pipeline
// reads from. Account management itself lives in another service; this
// package models only what generation needs.
package family

import (
	"strings"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// ParentAccount is the funding account for a family.
type ParentAccount struct {
	ID        int64
	Name      string
	Phone     string
	Balance   shared.Cents
	CreatedAt time.Time
}

// CanAfford reports whether the balance covers the amount.
func (p ParentAccount) CanAfford(amount shared.Cents) bool {
	return p.Balance.Covers(amount)
}

// ChildProfile is a child registered under a parent account.
type ChildProfile struct {
	ID        int64
	ParentID  int64
	Name      string
	Age       int
	CreatedAt time.Time
}

// Validate checks a child profile.
func (c ChildProfile) Validate() error {
	if c.ParentID <= 0 {
		return shared.WrapError("family", "Validate", shared.ErrInvalidID, "child parent id must be positive", nil)
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.WrapError("family", "Validate", shared.ErrEmptyValue, "child name is empty", nil)
	}
	if c.Age < 3 || c.Age > 17 {
		return shared.WrapError("family", "Validate", shared.ErrValueOutOfRange, "child age not in [3,17]", nil)
	}
	return nil
}
