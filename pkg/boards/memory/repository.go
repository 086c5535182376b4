// Package memory provides in-memory board and user collaborators.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
)

// Repository keeps boards in memory behind a single writer lock.
type Repository struct {
	mu     sync.RWMutex
	order  []string
	boards map[string]*models.Board
}

// NewRepository creates a repository seeded with copies of boards.
func NewRepository(boards ...*models.Board) *Repository {
	r := &Repository{boards: make(map[string]*models.Board)}
	for _, board := range boards {
		r.Put(board)
	}

	return r
}

// Put inserts or replaces a board.
func (r *Repository) Put(board *models.Board) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.boards[board.ID]; !exists {
		r.order = append(r.order, board.ID)
	}

	r.boards[board.ID] = board.Clone()
}

func (r *Repository) Boards(_ context.Context) ([]*models.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Board, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.boards[id].Clone())
	}

	return out, nil
}

func (r *Repository) Board(_ context.Context, boardID string) (*models.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	board, ok := r.boards[boardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrBoardNotFound, boardID)
	}

	return board.Clone(), nil
}

// UpdateBoard runs fn on a copy of the board under the writer lock and stores
// the copy only when fn succeeds.
func (r *Repository) UpdateBoard(ctx context.Context, boardID string, fn protocol.BoardMutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	board, ok := r.boards[boardID]
	if !ok {
		return fmt.Errorf("%w: %s", protocol.ErrBoardNotFound, boardID)
	}

	working := board.Clone()
	if err := fn(working); err != nil {
		return err
	}

	working.ID = boardID
	r.boards[boardID] = working

	return nil
}
