package services

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
)

// Catalog exposes the canned workflow templates and instantiates them through the rule store.
type Catalog struct {
	store     *Workflow
	templates []models.WorkflowTemplate
}

// NewCatalog creates a catalog over the built-in templates.
func NewCatalog(store *Workflow) *Catalog {
	return &Catalog{store: store, templates: builtinTemplates()}
}

// ListTemplates returns copies of every template.
func (c *Catalog) ListTemplates() []models.WorkflowTemplate {
	out := make([]models.WorkflowTemplate, len(c.templates))
	for i, tmpl := range c.templates {
		out[i] = tmpl
		out[i].Workflow = *tmpl.Workflow.Clone()
	}

	return out
}

// Template returns the template with the given id.
func (c *Catalog) Template(id string) (models.WorkflowTemplate, bool) {
	for _, tmpl := range c.templates {
		if tmpl.ID == id {
			tmpl.Workflow = *tmpl.Workflow.Clone()

			return tmpl, true
		}
	}

	return models.WorkflowTemplate{}, false
}

// Instantiate copies the template's workflow, stamps createdBy and stores it.
// The boolean is false when templateID is unknown.
func (c *Catalog) Instantiate(ctx context.Context, templateID, createdBy string) (*models.Workflow, bool, error) {
	tmpl, ok := c.Template(templateID)
	if !ok {
		return nil, false, nil
	}

	seed := tmpl.Workflow.Clone()
	seed.CreatedBy = createdBy

	created, err := c.store.Create(ctx, seed)
	if err != nil {
		return nil, true, err
	}

	return created, true, nil
}
