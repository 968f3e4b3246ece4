package adapter_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/adapter"
	"google.golang.org/genai"
)

type scorecard struct {
	Team    string   `json:"team" jsonschema:"Batting side"`
	Runs    int      `json:"runs"`
	RunRate float64  `json:"run_rate,omitempty"`
	Overs   []string `json:"overs,omitempty"`
	Final   bool     `json:"final"`
}

func TestSchemaFor(t *testing.T) {
	schema, err := adapter.SchemaFor[scorecard]()
	gt.NoError(t, err)
	gt.Equal(t, schema.Type, genai.TypeObject)

	gt.Map(t, schema.Properties).HasKey("team")
	gt.Equal(t, schema.Properties["team"].Type, genai.TypeString)
	gt.Equal(t, schema.Properties["team"].Description, "Batting side")
	gt.Equal(t, schema.Properties["runs"].Type, genai.TypeInteger)
	gt.Equal(t, schema.Properties["run_rate"].Type, genai.TypeNumber)
	gt.Equal(t, schema.Properties["final"].Type, genai.TypeBoolean)

	overs := schema.Properties["overs"]
	gt.Equal(t, overs.Type, genai.TypeArray)
	gt.NotNil(t, overs.Items)
	gt.Equal(t, overs.Items.Type, genai.TypeString)
}
