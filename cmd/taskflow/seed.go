package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dukex/taskflow/pkg/boards/memory"
	"github.com/dukex/taskflow/pkg/models"
)

// boardSeed is the document accepted by --boards-file.
type boardSeed struct {
	Boards []*models.Board `json:"boards"`
	Users  []models.User   `json:"users"`
}

// loadBoards fills the in-process board graph. Without a path a small demo
// board is used.
func loadBoards(path string) (*memory.Repository, *memory.Directory, error) {
	seed := demoSeed(time.Now().UTC())

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read boards file: %w", err)
		}

		seed = boardSeed{}
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, nil, fmt.Errorf("failed to decode boards file %s: %w", path, err)
		}
	}

	return memory.NewRepository(seed.Boards...), memory.NewDirectory(seed.Users...), nil
}

func demoSeed(now time.Time) boardSeed {
	tomorrow := now.Add(24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	return boardSeed{
		Boards: []*models.Board{{
			ID:   "demo",
			Name: "Demo board",
			Columns: []models.Column{
				{ID: "todo", Title: "To Do", Tasks: []models.Task{
					{ID: "demo-1", Title: "Write launch checklist", Priority: models.PriorityHigh, DueDate: &tomorrow, Members: []string{"alice"}, CreatedAt: now, UpdatedAt: now},
					{ID: "demo-2", Title: "Renew certificates", Priority: models.PriorityUrgent, DueDate: &yesterday, Members: []string{"bob"}, CreatedAt: now, UpdatedAt: now},
				}},
				{ID: "doing", Title: "In Progress"},
				{ID: "done", Title: "Done"},
			},
		}},
		Users: []models.User{
			{ID: "alice", Name: "Alice", Role: models.RoleMember},
			{ID: "bob", Name: "Bob", Role: models.RoleMember},
			{ID: "pm", Name: "Project Manager", Role: models.RoleAdmin},
		},
	}
}
