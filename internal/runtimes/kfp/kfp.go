// Package kfp is the pipeline execution family: workflows compiled and
// submitted to a remote pipeline engine. It never executes locally.
package kfp

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/zjrosen/kindhub/internal/entity"
	"github.com/zjrosen/kindhub/internal/kind"
	"github.com/zjrosen/kindhub/internal/registry"
	"github.com/zjrosen/kindhub/internal/runtime"
	"github.com/zjrosen/kindhub/internal/schema"
)

// Locator identifies this family in registry refs and manifests.
const Locator = "kindhub/kfp"

// Actions
const (
	ActionPipeline = "pipeline"
	ActionBuild    = "build"
)

// Family is the kfp kind table.
var Family = kind.MustFamily("kfp", "kfp+run",
	kind.ActionFor("kfp", ActionPipeline),
	kind.ActionFor("kfp", ActionBuild),
)

// Schemas
var (
	WorkflowSchema = schema.MustNew("kfp-workflow", schema.ExtraIgnore,
		schema.Field{Name: "source", Type: cty.String, Required: true},
		schema.Field{Name: "handler", Type: cty.String, Required: true},
		schema.Field{Name: "image", Type: cty.String},
	)

	PipelineSchema = runtime.TaskSchema("kfp-pipeline",
		schema.Field{Name: "experiment", Type: cty.String, Default: "default"},
	)

	BuildSchema = runtime.TaskSchema("kfp-build")

	RunSchema = runtime.RunSchema("kfp-run",
		schema.Field{Name: "schedule", Type: cty.String},
	)
)

// Module registers the kfp family. client may be nil; runs then fail with
// a configuration error in their status.
func Module(client Client, opts ...Option) registry.Module {
	return registry.ModuleFunc(func(r *registry.Registry) error {
		return r.RegisterFamily(registry.FamilyRegistration{
			Family:           Family,
			ExecutableType:   entity.TypeWorkflow,
			Locator:          Locator,
			NewRuntime:       NewFactory(client, opts...),
			ExecutableSchema: WorkflowSchema,
			TaskSchemas: map[string]*schema.Schema{
				ActionPipeline: PipelineSchema,
				ActionBuild:    BuildSchema,
			},
			RunSchema: RunSchema,
		})
	})
}

func init() {
	registry.ProvideRuntime(Locator, registry.RuntimeBinding{Family: Family, NewRuntime: NewFactory(nil)})
	for _, s := range []*schema.Schema{WorkflowSchema, PipelineSchema, BuildSchema, RunSchema} {
		registry.ProvideSchema(s)
	}
}
