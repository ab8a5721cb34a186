package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validExtraction() map[string]any {
	raw := `{
		"contact": {"name": "Ada Obi", "phone": "+2348012345678", "email": null, "preferred_contact_method": "sms"},
		"property": {"address": "12 Palm St", "city": "Lagos", "state": null, "zip_code": "10001",
			"property_type": "single_family", "bedrooms": 3, "bathrooms": 2, "square_feet": 1400,
			"year_built": 1995, "condition": "good"},
		"situation": {"motivation": "relocating", "urgency": "asap", "occupancy_status": "owner_occupied",
			"mortgage_status": null, "asking_price": 250000, "repairs_needed": null, "open_to_cash_offer": true},
		"intent": {"classification": "qualified_lead", "confidence": 0.9, "next_action": "schedule_call"},
		"metadata": {"language": "en", "sentiment": "positive", "contains_pii": true, "extraction_notes": null}
	}`
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		panic(err)
	}
	return data
}

func TestSchemaAcceptsValidExtraction(t *testing.T) {
	schema, err := LoadExtractionSchema()
	require.NoError(t, err)

	valid, errs := schema.Validate(validExtraction())
	assert.True(t, valid)
	assert.Empty(t, errs)
}

func TestSchemaAcceptsEmptyStructure(t *testing.T) {
	schema, err := LoadExtractionSchema()
	require.NoError(t, err)

	valid, errs := schema.Validate(emptyExtractionStructure())
	assert.True(t, valid, "empty structure must be schema-valid: %v", errs)
}

func TestSchemaRejectsViolations(t *testing.T) {
	schema, err := LoadExtractionSchema()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing section", func(d map[string]any) { delete(d, "intent") }},
		{"bad classification", func(d map[string]any) {
			d["intent"].(map[string]any)["classification"] = "maybe"
		}},
		{"confidence out of range", func(d map[string]any) {
			d["intent"].(map[string]any)["confidence"] = 1.5
		}},
		{"bedrooms as string", func(d map[string]any) {
			d["property"].(map[string]any)["bedrooms"] = "three"
		}},
		{"bad phone format", func(d map[string]any) {
			d["contact"].(map[string]any)["phone"] = "0801 234 5678"
		}},
		{"unexpected top-level key", func(d map[string]any) { d["extra"] = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validExtraction()
			tt.mutate(data)
			valid, errs := schema.Validate(data)
			assert.False(t, valid)
			assert.NotEmpty(t, errs)
		})
	}
}
