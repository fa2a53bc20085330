// Package container is the container execution family: functions that run
// an image or a local command, with job, build and serve actions.
package container

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// Locator identifies this family in registry refs and manifests.
const Locator = "kindhub/container"

// Actions
const (
	ActionJob   = "job"
	ActionBuild = "build"
	ActionServe = "serve"
)

// Family is the container kind table.
var Family = kind.MustFamily("container", "container+run",
	kind.ActionFor("container", ActionJob),
	kind.ActionFor("container", ActionBuild),
	kind.ActionFor("container", ActionServe),
)

// Schemas
var (
	FunctionSchema = schema.MustNew("container-function", schema.ExtraIgnore,
		schema.Field{Name: "image", Type: cty.String},
		schema.Field{Name: "base_image", Type: cty.String},
		schema.Field{Name: "command", Type: cty.String},
		schema.Field{Name: "args", Type: cty.List(cty.String)},
		schema.Field{Name: "env", Type: cty.Map(cty.String)},
		schema.Field{Name: "workdir", Type: cty.String},
	)

	JobSchema = runtime.TaskSchema("container-job",
		schema.Field{Name: "backoff_limit", Type: cty.Number, Default: 0},
		schema.Field{Name: "timeout", Type: cty.Number},
	)

	BuildSchema = runtime.TaskSchema("container-build",
		schema.Field{Name: "instructions", Type: cty.List(cty.String)},
		schema.Field{Name: "target_image", Type: cty.String},
	)

	ServeSchema = runtime.TaskSchema("container-serve",
		schema.Field{Name: "replicas", Type: cty.Number, Default: 1},
		schema.Field{Name: "port", Type: cty.Number},
	)

	RunSchema = runtime.RunSchema("container-run",
		schema.Field{Name: "args", Type: cty.List(cty.String)},
		schema.Field{Name: "env", Type: cty.Map(cty.String)},
	)
)

// Module registers the container family with the given runtime options.
func Module(opts ...Option) registry.Module {
	return registry.ModuleFunc(func(r *registry.Registry) error {
		return r.RegisterFamily(registry.FamilyRegistration{
			Family:           Family,
			ExecutableType:   entity.TypeFunction,
			Locator:          Locator,
			NewRuntime:       NewFactory(opts...),
			ExecutableSchema: FunctionSchema,
			TaskSchemas: map[string]*schema.Schema{
				ActionJob:   JobSchema,
				ActionBuild: BuildSchema,
				ActionServe: ServeSchema,
			},
			RunSchema: RunSchema,
		})
	})
}

func init() {
	registry.ProvideRuntime(Locator, registry.RuntimeBinding{Family: Family, NewRuntime: NewFactory()})
	for _, s := range []*schema.Schema{FunctionSchema, JobSchema, BuildSchema, ServeSchema, RunSchema} {
		registry.ProvideSchema(s)
	}
}
