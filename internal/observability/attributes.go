package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrPipeline = "pipeline"
	attrOutcome  = "outcome"
	attrStage    = "stage"
	attrSuccess  = "success"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func pipelineAttr(pipeline string) attribute.KeyValue {
	return attribute.String(attrPipeline, pipeline)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(attrStage, stage)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizePath replaces dynamic path segments with placeholders to keep
// metric cardinality bounded: /v1/batch/jobs/sample1 -> /v1/batch/jobs/{sampleId}.
func normalizePath(path string) string {
	const prefix = "/v1/batch/jobs/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		return prefix + "{sampleId}"
	}
	return path
}

// WithPipeline returns a metric option with the pipeline attribute.
func WithPipeline(pipeline string) metric.MeasurementOption {
	return metric.WithAttributes(pipelineAttr(pipeline))
}

// WithStage returns a metric option with the stage attribute.
func WithStage(stage string) metric.MeasurementOption {
	return metric.WithAttributes(stageAttr(stage))
}
