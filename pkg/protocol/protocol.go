// Package protocol defines the contracts between the engine and its collaborators.
package protocol

import (
	"context"
	"errors"

	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/models"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrUserNotFound  = errors.New("user not found")
)

// BoardMutation edits a board in place. Returning an error discards the edit.
type BoardMutation func(board *models.Board) error

// BoardRepository gives read access to the board graph and serializes writes.
// Callers never hold a live reference: reads return copies and every write
// goes through UpdateBoard.
type BoardRepository interface {
	Boards(ctx context.Context) ([]*models.Board, error)
	Board(ctx context.Context, boardID string) (*models.Board, error)
	UpdateBoard(ctx context.Context, boardID string, fn BoardMutation) error
}

// UserDirectory resolves users.
type UserDirectory interface {
	User(ctx context.Context, userID string) (*models.User, error)
	Users(ctx context.Context) ([]*models.User, error)
	// FirstAdmin returns the earliest admin in directory order.
	FirstAdmin(ctx context.Context) (*models.User, error)
}

// Notifier delivers a message to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// Publisher emits events on the bus.
type Publisher interface {
	Publish(ctx context.Context, key string, event eventbus.Event) error
}
