package research

import (
	"time"

	"github.com/sicko7947/agentflow"
	"github.com/sicko7947/agentflow/builder"
)

// NewResearchWorkflow assembles the pipeline: search, then summarize and
// critique in parallel, then write the report. The writer's confidence input
// is optional so the report still lands when the critic is skipped.
func NewResearchWorkflow() *agentflow.WorkflowDefinition {
	return builder.NewWorkflow("research", "1.0.0").
		WithTimeout(time.Minute).
		Then("search", "searcher", "search",
			builder.WithInputs("topic"),
			builder.WithOutputs("sources"),
		).
		Parallel(
			builder.ParallelStep{
				ID: "summarize", Agent: "summarizer", Action: "summarize",
				Options: []builder.StepOption{
					builder.WithInputs("sources"),
					builder.WithOutputs("summary"),
				},
			},
			builder.ParallelStep{
				ID: "critique", Agent: "critic", Action: "score",
				Options: []builder.StepOption{
					builder.WithInputs("sources"),
					builder.WithOutputs("confidence"),
					builder.WithCondition("defined(deep) && deep == true"),
				},
			},
		).
		Then("write", "writer", "compose",
			builder.WithInputs("summary", "confidence?"),
			builder.WithOutputs("report"),
		).
		MustBuild()
}
