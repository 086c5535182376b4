package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBoard() *models.Board {
	return &models.Board{
		ID:   "board-1",
		Name: "Product",
		Columns: []models.Column{
			{ID: "todo", Title: "To Do", Tasks: []models.Task{{ID: "task-1", Title: "Plan"}}},
			{ID: "done", Title: "Done"},
		},
	}
}

func TestRepository_ReadsAreCopies(t *testing.T) {
	repo := NewRepository(testBoard())

	board, err := repo.Board(t.Context(), "board-1")
	require.NoError(t, err)

	board.Columns[0].Tasks[0].Title = "changed"

	again, err := repo.Board(t.Context(), "board-1")
	require.NoError(t, err)
	assert.Equal(t, "Plan", again.Columns[0].Tasks[0].Title)

	_, err = repo.Board(t.Context(), "missing")
	assert.ErrorIs(t, err, protocol.ErrBoardNotFound)
}

func TestRepository_UpdateBoard(t *testing.T) {
	repo := NewRepository(testBoard())

	err := repo.UpdateBoard(t.Context(), "board-1", func(board *models.Board) error {
		task, _, ok := board.FindTask("task-1")
		require.True(t, ok)

		task.Priority = models.PriorityHigh

		return nil
	})
	require.NoError(t, err)

	board, _ := repo.Board(t.Context(), "board-1")
	assert.Equal(t, models.PriorityHigh, board.Columns[0].Tasks[0].Priority)
}

func TestRepository_UpdateBoardDiscardsFailedEdit(t *testing.T) {
	repo := NewRepository(testBoard())
	boom := errors.New("boom")

	err := repo.UpdateBoard(t.Context(), "board-1", func(board *models.Board) error {
		board.Columns[0].Tasks = nil

		return boom
	})
	require.ErrorIs(t, err, boom)

	board, _ := repo.Board(t.Context(), "board-1")
	assert.Len(t, board.Columns[0].Tasks, 1)

	err = repo.UpdateBoard(t.Context(), "missing", func(*models.Board) error { return nil })
	assert.ErrorIs(t, err, protocol.ErrBoardNotFound)
}

func TestRepository_UpdateBoardCancelled(t *testing.T) {
	repo := NewRepository(testBoard())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := repo.UpdateBoard(ctx, "board-1", func(*models.Board) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepository_ConcurrentUpdatesSerialize(t *testing.T) {
	repo := NewRepository(testBoard())

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = repo.UpdateBoard(context.Background(), "board-1", func(board *models.Board) error {
				task, _, _ := board.FindTask("task-1")
				task.Labels = append(task.Labels, "x")

				return nil
			})
		}()
	}

	wg.Wait()

	board, _ := repo.Board(t.Context(), "board-1")
	assert.Len(t, board.Columns[0].Tasks[0].Labels, 50)
}

func TestRepository_BoardsKeepInsertionOrder(t *testing.T) {
	second := testBoard()
	second.ID = "board-2"

	repo := NewRepository(testBoard(), second)

	boards, err := repo.Boards(t.Context())
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, "board-1", boards[0].ID)
	assert.Equal(t, "board-2", boards[1].ID)
}

func TestDirectory_FirstAdminUsesDirectoryOrder(t *testing.T) {
	dir := NewDirectory(
		models.User{ID: "u1", Name: "Member", Role: models.RoleMember},
		models.User{ID: "u2", Name: "Alex", Role: models.RoleAdmin},
		models.User{ID: "u3", Name: "Sam", Role: models.RoleAdmin},
	)

	admin, err := dir.FirstAdmin(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u2", admin.ID)

	user, err := dir.User(t.Context(), "u3")
	require.NoError(t, err)
	assert.Equal(t, "Sam", user.Name)

	_, err = dir.User(t.Context(), "missing")
	assert.ErrorIs(t, err, protocol.ErrUserNotFound)

	users, err := dir.Users(t.Context())
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestDirectory_NoAdmin(t *testing.T) {
	dir := NewDirectory(models.User{ID: "u1", Role: models.RoleMember})

	_, err := dir.FirstAdmin(t.Context())
	assert.ErrorIs(t, err, protocol.ErrUserNotFound)

	dir.Add(models.User{ID: "u1", Role: models.RoleAdmin})

	admin, err := dir.FirstAdmin(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", admin.ID)
}
