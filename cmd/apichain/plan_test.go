package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apichain/apichain/pkg/models"
)

func TestPrintPlan_MinimalDocument(t *testing.T) {
	// initStage and endStage are optional; planning a document without
	// them must not crash.
	doc := &models.Workflow{
		Name: "bare-document",
		Stages: []*models.Stage{
			{Name: "getUser", Kind: models.StageKindEndpoint, APIRef: "users", Endpoint: "/users/1", ExpectedStatus: 200},
		},
	}

	require.NotPanics(t, func() { printPlan(doc) })
}

func TestPrintPlan_FullDocument(t *testing.T) {
	doc := &models.Workflow{
		Name: "full-document",
		InitStage: &models.InitStage{
			Variables: []models.VariableDecl{{Name: "base", Value: "v1"}},
		},
		Stages: []*models.Stage{
			{
				Name:           "getUser",
				Kind:           models.StageKindEndpoint,
				APIRef:         "users",
				Endpoint:       "/users/1",
				ExpectedStatus: 200,
				JumpOnStatus:   map[int]string{404: "end"},
			},
			{Name: "enrich", Kind: models.StageKindWorkflow, WorkflowRef: "enrichment"},
		},
		EndStage: &models.EndStage{
			Output: map[string]string{"userName": "{{stage.getUser.output.name}}"},
		},
	}

	require.NotPanics(t, func() { printPlan(doc) })
}
