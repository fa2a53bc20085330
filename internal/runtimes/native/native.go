// Package native runs functions implemented as Go handlers inside the
// calling process.
package native

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// Locator identifies this family in registry refs and manifests.
const Locator = "kindhub/native"

// ActionJob is the only native action.
const ActionJob = "job"

// Family is the native kind table.
var Family = kind.MustFamily("native", "native+run", kind.ActionFor("native", ActionJob))

// Schemas
var (
	FunctionSchema = schema.MustNew("native-function", schema.ExtraIgnore,
		schema.Field{Name: "handler", Type: cty.String, Required: true},
	)

	JobSchema = runtime.TaskSchema("native-job",
		schema.Field{Name: "timeout", Type: cty.Number},
	)

	RunSchema = runtime.RunSchema("native-run")
)

// Module registers the native family resolving handlers from handlers.
func Module(handlers *Handlers) registry.Module {
	return registry.ModuleFunc(func(r *registry.Registry) error {
		return r.RegisterFamily(registry.FamilyRegistration{
			Family:           Family,
			ExecutableType:   entity.TypeFunction,
			Locator:          Locator,
			NewRuntime:       NewFactory(handlers),
			ExecutableSchema: FunctionSchema,
			TaskSchemas:      map[string]*schema.Schema{ActionJob: JobSchema},
			RunSchema:        RunSchema,
		})
	})
}

func init() {
	registry.ProvideRuntime(Locator, registry.RuntimeBinding{Family: Family, NewRuntime: NewFactory(DefaultHandlers())})
	for _, s := range []*schema.Schema{FunctionSchema, JobSchema, RunSchema} {
		registry.ProvideSchema(s)
	}
}
