package models

// WorkflowTemplate is a canned workflow definition. Its embedded workflow is a
// seed; instantiation copies it and never mutates the template.
type WorkflowTemplate struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Icon        string   `json:"icon"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Workflow    Workflow `json:"workflow"`
}
