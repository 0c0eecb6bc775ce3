package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/semantics"
)

// FormMode selects which form a descriptor set is built for.
type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// ParseFormMode accepts "create" or "edit".
func ParseFormMode(s string) (FormMode, error) {
	switch FormMode(strings.ToLower(s)) {
	case FormCreate:
		return FormCreate, nil
	case FormEdit:
		return FormEdit, nil
	default:
		return "", errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown form mode %q", s))
	}
}

// InputKind is the widget a form should render for a column.
type InputKind string

const (
	InputNumber   InputKind = "number"
	InputCheckbox InputKind = "checkbox"
	InputDate     InputKind = "date"
	InputDateTime InputKind = "datetime"
	InputTextarea InputKind = "textarea"
	InputFile     InputKind = "file"
	InputText     InputKind = "text"
)

var longTextNames = map[string]bool{
	"description": true,
	"content":     true,
	"body":        true,
	"notes":       true,
	"bio":         true,
}

// FormField describes one column of a create or edit form.
type FormField struct {
	Name         string                 `json:"name"`
	Input        InputKind              `json:"input"`
	Type         schema.Type            `json:"type"`
	DeclaredType string                 `json:"declared_type"`
	Semantic     semantics.SemanticType `json:"semantic,omitempty"`
	Required     bool                   `json:"required"`
	Visible      bool                   `json:"visible"`
	Default      *string                `json:"default,omitempty"`
}

// FormFields returns one descriptor per column of tableName in schema order.
// Columns the engine fills in itself are marked hidden.
func (e *Engine) FormFields(_ context.Context, tableName string, mode FormMode, currentUser string) ([]FormField, error) {
	if mode != FormCreate && mode != FormEdit {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown form mode %q", mode))
	}
	t, err := e.resolve(tableName)
	if err != nil {
		return nil, err
	}

	fields := make([]FormField, 0, len(t.meta.Columns))
	for _, col := range t.meta.Columns {
		st := t.sem.Of(col.Name)
		visible := isVisible(t, col, st, mode, currentUser)

		f := FormField{
			Name:         col.Name,
			Input:        inputKind(col, st),
			Type:         col.Type,
			DeclaredType: col.DeclaredType,
			Required:     visible && (t.isPrimaryKey(col.Name) || (!col.Nullable && col.Default == nil)),
			Visible:      visible,
			Default:      col.Default,
		}
		if st != semantics.None {
			f.Semantic = st
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func isVisible(t *table, col schema.ColumnInfo, st semantics.SemanticType, mode FormMode, currentUser string) bool {
	switch {
	case t.isPrimaryKey(col.Name):
		// Keys the database cannot assign must be entered on create.
		return mode == FormCreate && !col.HasDefault()
	case st == semantics.CreatedAt:
		// Always auto-populated on create, immutable on edit.
		return false
	case st == semantics.CreatedBy:
		return mode == FormCreate && currentUser == ""
	case st.IsUpdate():
		return false
	default:
		return true
	}
}

func inputKind(col schema.ColumnInfo, st semantics.SemanticType) InputKind {
	if st.IsAutoTimestamp() || st == semantics.DeletedAt {
		return InputDateTime
	}

	switch col.Type {
	case schema.TypeInteger, schema.TypeReal:
		return InputNumber
	case schema.TypeBoolean:
		return InputCheckbox
	case schema.TypeBlob:
		return InputFile
	}

	upper := strings.ToUpper(col.DeclaredType)
	switch {
	case strings.Contains(upper, "TIME"):
		return InputDateTime
	case strings.Contains(upper, "DATE"):
		return InputDate
	case longTextNames[strings.ToLower(col.Name)]:
		return InputTextarea
	}
	return InputText
}
