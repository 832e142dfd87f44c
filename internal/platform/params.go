package platform

import (
	"fmt"

	"icabatch/internal/apperrors"
)

// Supported DRAGEN pipeline presets.
const (
	PipelineGermline   = "dragen-germline"
	PipelineRNA        = "dragen-rna"
	PipelineEnrichment = "dragen-enrichment"
)

// BuildParams resolves the full parameter set for a pipeline run: the
// per-pipeline preset, reference paths, then per-sample custom parameters.
// Custom parameters override preset values of the same name.
func BuildParams(pipeline, reference, sampleID, targetBed string, custom map[string]string) (map[string]any, error) {
	params := map[string]any{
		"sample-id":        sampleID,
		"reference-tar":    fmt.Sprintf("/reference-data/%s/%s.fa", reference, reference),
		"output-directory": "/output",
	}

	switch pipeline {
	case PipelineGermline:
		params["enable-map-align"] = true
		params["enable-sort"] = true
		params["enable-duplicate-marking"] = true
		params["enable-variant-caller"] = true

	case PipelineRNA:
		params["enable-rna"] = true
		params["enable-rna-quantification"] = true
		params["annotation-file"] = fmt.Sprintf("/reference-data/%s/genes.gtf", reference)

	case PipelineEnrichment:
		if targetBed == "" {
			return nil, apperrors.Validation("target_bed",
				fmt.Sprintf("pipeline %s requires a target_bed file", pipeline))
		}
		params["enable-map-align"] = true
		params["enable-variant-caller"] = true
		params["vc-target-bed"] = targetBed
		params["vc-target-bed-padding"] = 100

	default:
		// Unknown pipelines run with the base parameters only; the platform
		// validates pipeline-specific settings at launch.
	}

	for k, v := range custom {
		params[k] = v
	}

	return params, nil
}
