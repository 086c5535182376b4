package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/models"
)

// Condition context keys.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldDueDate     = "due_date"
	FieldMembers     = "members"
	FieldLabels      = "labels"
	FieldColumnID    = "column_id"
	FieldBoardID     = "board_id"
	FieldTaskID      = "task_id"
	FieldActorID     = "actor_id"
	FieldEventType   = "event_type"

	CustomFieldPrefix = "custom."
	ChangesPrefix     = "changes."
)

// Context is the flat view of a trigger event that conditions are evaluated against.
type Context map[string]any

// BuildContext flattens the event into a condition context. Task fields are
// present only when the event carries a task; a task without a due date
// exposes due_date as nil so is_empty can match it.
func BuildContext(event models.TriggerEvent, columnID string) Context {
	ctx := Context{
		FieldEventType: string(event.Type),
		FieldActorID:   event.ActorID,
		FieldBoardID:   event.BoardID,
	}

	if task := event.Task; task != nil {
		ctx[FieldTaskID] = task.ID
		ctx[FieldTitle] = task.Title
		ctx[FieldDescription] = task.Description
		ctx[FieldPriority] = task.Priority
		ctx[FieldMembers] = append([]string{}, task.Members...)
		ctx[FieldLabels] = append([]string{}, task.Labels...)
		ctx[FieldColumnID] = columnID

		if task.DueDate != nil {
			ctx[FieldDueDate] = *task.DueDate
		} else {
			ctx[FieldDueDate] = nil
		}

		for name, value := range task.CustomFields {
			ctx[CustomFieldPrefix+name] = value
		}
	}

	for field, value := range event.Changes {
		ctx[ChangesPrefix+field] = value
	}

	return ctx
}

// Evaluate reports whether every condition holds. An empty list always
// holds; unknown operators and fields never do.
func Evaluate(conditions []models.Condition, ctx Context) bool {
	for _, condition := range conditions {
		if !evaluateCondition(condition, ctx) {
			return false
		}
	}

	return true
}

func evaluateCondition(condition models.Condition, ctx Context) bool {
	actual, ok := ctx[condition.Field]
	if !ok {
		return false
	}

	expected := condition.Value

	switch condition.Operator {
	case models.OperatorEquals:
		return equal(condition.Field, actual, expected)
	case models.OperatorNotEquals:
		return !equal(condition.Field, actual, expected)
	case models.OperatorGreaterThan:
		cmp, ok := order(condition.Field, actual, expected)
		return ok && cmp > 0
	case models.OperatorLessThan:
		cmp, ok := order(condition.Field, actual, expected)
		return ok && cmp < 0
	case models.OperatorGreaterOrEqual:
		cmp, ok := order(condition.Field, actual, expected)
		return ok && cmp >= 0
	case models.OperatorLessOrEqual:
		cmp, ok := order(condition.Field, actual, expected)
		return ok && cmp <= 0
	case models.OperatorContains:
		return contains(actual, expected)
	case models.OperatorNotContains:
		return !contains(actual, expected)
	case models.OperatorIn:
		for _, candidate := range listOf(expected) {
			if equal(condition.Field, actual, candidate) {
				return true
			}
		}

		return false
	case models.OperatorIsEmpty:
		return isEmpty(actual)
	case models.OperatorIsNotEmpty:
		return !isEmpty(actual)
	default:
		return false
	}
}

func equal(field string, actual, expected any) bool {
	if actualList, ok := stringList(actual); ok {
		expectedList, ok := stringList(expected)
		if !ok {
			return false
		}

		return reflect.DeepEqual(actualList, expectedList)
	}

	if cmp, ok := order(field, actual, expected); ok {
		return cmp == 0
	}

	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	return toString(actual) == toString(expected)
}

// order compares two scalars as priorities (for the priority field), numbers
// or RFC3339 times, in that order of preference.
func order(field string, actual, expected any) (int, bool) {
	if field == FieldPriority {
		a, okA := models.PriorityRank(toString(actual))
		b, okB := models.PriorityRank(toString(expected))

		if okA && okB {
			return compareInts(a, b), true
		}
	}

	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(expected); ok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if a, ok := toTime(actual); ok {
		if b, ok := toTime(expected); ok {
			return a.Compare(b), true
		}
	}

	return 0, false
}

func contains(actual, expected any) bool {
	if list, ok := stringList(actual); ok {
		needle := toString(expected)
		for _, item := range list {
			if item == needle {
				return true
			}
		}

		return false
	}

	text, ok := actual.(string)
	if !ok || expected == nil {
		return false
	}

	return strings.Contains(text, toString(expected))
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case *time.Time:
		return v == nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// listOf accepts JSON arrays and comma separated strings.
func listOf(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}

		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]any, 0, len(parts))

		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}

		return out
	default:
		return nil
	}
}

func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = toString(item)
		}

		return out, true
	default:
		return nil, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}

		return v.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
