package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidate_Mutation(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name       string
		doc        map[string]interface{}
		valid      bool
		errorField string
	}{
		{
			name: "valid submit feedback",
			doc: map[string]interface{}{
				"kind":      "submit_feedback",
				"candidate": map[string]interface{}{"candidateId": "c1"},
				"roundName": "Technical Interview",
				"decision":  "hire",
				"rating":    4.5,
			},
			valid: true,
		},
		{
			name: "submit feedback without decision",
			doc: map[string]interface{}{
				"kind":      "submit_feedback",
				"candidate": map[string]interface{}{"candidateId": "c1"},
			},
			errorField: "decision",
		},
		{
			name: "rating above scale",
			doc: map[string]interface{}{
				"kind":      "set_round_decision",
				"candidate": map[string]interface{}{"candidateId": "c1"},
				"decision":  "reject",
				"rating":    7,
			},
			errorField: "rating",
		},
		{
			name: "unlisted overall status is accepted",
			doc: map[string]interface{}{
				"kind":      "set_overall_status",
				"candidate": map[string]interface{}{"candidateId": "c1"},
				"status":    "maybe_later",
			},
			valid: true,
		},
		{
			name: "overall status required",
			doc: map[string]interface{}{
				"kind":      "set_overall_status",
				"candidate": map[string]interface{}{"candidateId": "c1"},
			},
			errorField: "status",
		},
		{
			name: "provisioning needs a job",
			doc: map[string]interface{}{
				"kind":      "provision_default_rounds",
				"candidate": map[string]interface{}{},
			},
			errorField: "candidate.jobId",
		},
		{
			name:       "missing kind",
			doc:        map[string]interface{}{"candidate": map[string]interface{}{}},
			errorField: "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(SchemaMutation, tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.GetErrorMessages())
			if tt.errorField != "" {
				assert.True(t, res.HasErrors(tt.errorField), res.GetErrorMessages())
			}
		})
	}
}

func TestValidate_ViewQuery(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate(SchemaViewQuery, map[string]interface{}{
		"candidate": map[string]interface{}{"candidateId": "c1", "jobId": "j1"},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate(SchemaViewQuery, map[string]interface{}{
		"blob": map[string]interface{}{"rounds": []interface{}{}},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate(SchemaViewQuery, map[string]interface{}{
		"candidate": map[string]interface{}{"name": "Alice"},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	_, err := v.Validate("nope", map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("alice@example.com"))
	assert.False(t, ValidateEmail("Alice <alice@example.com>"))
	assert.False(t, ValidateEmail("not-an-email"))
}
