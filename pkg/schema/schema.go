// Package schema validates workflow documents against the workflow JSON schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow.schema.json
var workflowSchema []byte

var (
	ErrInvalidDocument = errors.New("invalid workflow document")

	schemaLoader = gojsonschema.NewBytesLoader(workflowSchema)
)

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Validate checks a document holding one workflow or an array of workflows.
func Validate(document []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return &ValidationError{Problems: problems}
	}

	return nil
}

// Decode validates the document and decodes its workflows.
func Decode(document []byte) ([]*models.Workflow, error) {
	if err := Validate(document); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(document)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var workflows []*models.Workflow
		if err := json.Unmarshal(trimmed, &workflows); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}

		return workflows, nil
	}

	var workflow models.Workflow
	if err := json.Unmarshal(trimmed, &workflow); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return []*models.Workflow{&workflow}, nil
}
