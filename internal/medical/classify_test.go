package medical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/errs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Resource
	}{
		{
			name:    "immunization",
			payload: `{"resourceType":"Immunization","id":"imm-1","status":"completed"}`,
			want:    Resource{Type: "Immunization", ID: "imm-1", Classification: Vaccines},
		},
		{
			name:    "medication statement",
			payload: `{"resourceType":"MedicationStatement","id":"m1"}`,
			want:    Resource{Type: "MedicationStatement", ID: "m1", Classification: Medications},
		},
		{
			name: "vital signs observation",
			payload: `{"resourceType":"Observation","id":"o1","category":[{"coding":[
				{"system":"http://terminology.hl7.org/CodeSystem/observation-category","code":"vital-signs"}]}]}`,
			want: Resource{Type: "Observation", ID: "o1", Classification: VitalSigns},
		},
		{
			name: "first recognised category wins",
			payload: `{"resourceType":"Observation","id":"o2","category":[
				{"coding":[{"code":"exam"}]},{"coding":[{"code":"laboratory"}]}]}`,
			want: Resource{Type: "Observation", ID: "o2", Classification: LaboratoryResults},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	payloads := map[string]string{
		"not json":          `{"resourceType":`,
		"no type":           `{"id":"x"}`,
		"no id":             `{"resourceType":"Condition"}`,
		"unsupported type":  `{"resourceType":"Claim","id":"c"}`,
		"uncategorised obs": `{"resourceType":"Observation","id":"o","category":[{"coding":[{"code":"exam"}]}]}`,
	}
	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			_, err := Classify([]byte(p))
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, c := range Classifications() {
		got, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := Parse("DENTAL")
	assert.True(t, errs.IsValidation(err))
	assert.Len(t, Names(), 11)
	assert.Equal(t, "Classification(0)", Unknown.String())
}
