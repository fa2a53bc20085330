package runtime

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/schema"
)

// Spec keys written by the dispatcher.
const (
	SpecTask           = "task"
	SpecFunction       = "function"
	SpecWorkflow       = "workflow"
	SpecLocalExecution = "local_execution"
)

// RunFields are the fields every run schema declares.
func RunFields() []schema.Field {
	return []schema.Field{
		{Name: SpecTask, Type: cty.String, Required: true},
		{Name: SpecLocalExecution, Type: cty.Bool, Default: false},
		{Name: "inputs", Type: cty.DynamicPseudoType},
		{Name: "parameters", Type: cty.DynamicPseudoType},
	}
}

// TaskFields are the fields every task schema declares.
func TaskFields() []schema.Field {
	return []schema.Field{
		{Name: SpecFunction, Type: cty.String},
		{Name: SpecWorkflow, Type: cty.String},
	}
}

// RunSchema builds a run schema from RunFields plus family fields.
func RunSchema(name string, fields ...schema.Field) *schema.Schema {
	return schema.MustNew(name, schema.ExtraIgnore, append(RunFields(), fields...)...)
}

// TaskSchema builds a task schema from TaskFields plus family fields.
func TaskSchema(name string, fields ...schema.Field) *schema.Schema {
	return schema.MustNew(name, schema.ExtraIgnore, append(TaskFields(), fields...)...)
}
