package schema

import (
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflow = `{
  "name": "Escalate overdue",
  "is_active": true,
  "trigger": {"type": "task_overdue", "config": {"board_id": "b1"}},
  "conditions": [{"field": "priority", "operator": "in", "value": ["High", "Urgent"]}],
  "actions": [
    {"type": "set_priority", "order": 1, "config": {"priority": "Urgent"}},
    {"type": "add_comment", "order": 2, "config": {"text": "Escalated {task.title}"}}
  ]
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		document string
		valid    bool
	}{
		{"single workflow", validWorkflow, true},
		{"array of workflows", "[" + validWorkflow + "," + validWorkflow + "]", true},
		{"missing trigger type", `{"name": "x", "trigger": {"config": {}}}`, false},
		{"missing trigger", `{"name": "x"}`, false},
		{"empty name", `{"name": "", "trigger": {"type": "manual"}}`, false},
		{"unknown operator", `{"name": "x", "trigger": {"type": "manual"}, "conditions": [{"field": "title", "operator": "like"}]}`, false},
		{"action without type", `{"name": "x", "trigger": {"type": "manual"}, "actions": [{"order": 1}]}`, false},
		{"not json", `{`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.document))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDocument)
			}
		})
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	err := Validate([]byte(`{"name": "x", "trigger": {"config": {}}}`))

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Problems)
}

func TestDecode(t *testing.T) {
	workflows, err := Decode([]byte(validWorkflow))
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	wf := workflows[0]
	assert.Equal(t, "Escalate overdue", wf.Name)
	assert.Equal(t, models.TaskFilter{BoardID: "b1"}, wf.Trigger.Config)
	require.Len(t, wf.Actions, 2)
	assert.Equal(t, models.SetPriorityConfig{Priority: "Urgent"}, wf.Actions[0].Config)

	workflows, err = Decode([]byte(" [" + validWorkflow + "]"))
	require.NoError(t, err)
	assert.Len(t, workflows, 1)

	_, err = Decode([]byte(`{"name": "x", "trigger": {}}`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
