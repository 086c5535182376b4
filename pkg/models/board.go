package models

import (
	"strings"
	"time"
)

// Task priorities, lowest first.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

var priorityRanks = map[string]int{
	"low":    1,
	"medium": 2,
	"high":   3,
	"urgent": 4,
}

// PriorityRank returns the ordinal of a priority name, case insensitive.
func PriorityRank(priority string) (int, bool) {
	rank, ok := priorityRanks[strings.ToLower(strings.TrimSpace(priority))]

	return rank, ok
}

// Activity types written on tasks.
const (
	ActivityComment = "comment"
	ActivityCreated = "created"
)

// ActivityEntry is one line of a task's activity log.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is a card on a board column.
type Task struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Priority     string          `json:"priority,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Members      []string        `json:"members"`
	Labels       []string        `json:"labels"`
	CustomFields map[string]any  `json:"custom_fields,omitempty"`
	Activity     []ActivityEntry `json:"activity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasMember reports whether userID is in the task's member list.
func (t *Task) HasMember(userID string) bool {
	for _, member := range t.Members {
		if member == userID {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	clone := *t
	clone.Members = append([]string(nil), t.Members...)
	clone.Labels = append([]string(nil), t.Labels...)
	clone.Activity = append([]ActivityEntry(nil), t.Activity...)

	if t.DueDate != nil {
		due := *t.DueDate
		clone.DueDate = &due
	}

	if t.CustomFields != nil {
		clone.CustomFields = make(map[string]any, len(t.CustomFields))
		for k, v := range t.CustomFields {
			clone.CustomFields[k] = v
		}
	}

	return &clone
}

// Column is an ordered list of tasks on a board.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// IsDone reports whether the column holds finished work.
func (c *Column) IsDone() bool {
	title := strings.ToLower(strings.TrimSpace(c.Title))

	return title == "done" || title == "completed"
}

// Board is a set of columns.
type Board struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the column with the given id.
func (b *Board) Column(columnID string) (*Column, bool) {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return &b.Columns[i], true
		}
	}

	return nil, false
}

// FindTask locates a task and the column holding it.
func (b *Board) FindTask(taskID string) (*Task, *Column, bool) {
	for i := range b.Columns {
		column := &b.Columns[i]
		for j := range column.Tasks {
			if column.Tasks[j].ID == taskID {
				return &column.Tasks[j], column, true
			}
		}
	}

	return nil, nil, false
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}

	clone := &Board{ID: b.ID, Name: b.Name, Columns: make([]Column, len(b.Columns))}

	for i, column := range b.Columns {
		tasks := make([]Task, len(column.Tasks))
		for j := range column.Tasks {
			tasks[j] = *column.Tasks[j].Clone()
		}

		clone.Columns[i] = Column{ID: column.ID, Title: column.Title, Tasks: tasks}
	}

	return clone
}

// UserRole is the role of a user in the directory.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

// User is an entry of the user directory.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Role  UserRole `json:"role"`
}
