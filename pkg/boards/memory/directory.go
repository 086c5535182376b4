package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
)

// Directory is an ordered user directory. The first admin is the earliest
// admin added.
type Directory struct {
	mu    sync.RWMutex
	users []models.User
}

// NewDirectory creates a directory holding users in the given order.
func NewDirectory(users ...models.User) *Directory {
	return &Directory{users: append([]models.User(nil), users...)}
}

// Add appends a user, replacing an existing entry with the same id in place.
func (d *Directory) Add(user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.users {
		if d.users[i].ID == user.ID {
			d.users[i] = user

			return
		}
	}

	d.users = append(d.users, user)
}

func (d *Directory) User(_ context.Context, userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, user := range d.users {
		if user.ID == userID {
			return &user, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", protocol.ErrUserNotFound, userID)
}

func (d *Directory) Users(_ context.Context) ([]*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*models.User, len(d.users))
	for i := range d.users {
		user := d.users[i]
		out[i] = &user
	}

	return out, nil
}

func (d *Directory) FirstAdmin(_ context.Context) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, user := range d.users {
		if user.Role == models.RoleAdmin {
			return &user, nil
		}
	}

	return nil, fmt.Errorf("%w: no admin in directory", protocol.ErrUserNotFound)
}
