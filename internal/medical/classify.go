// Package medical classifies FHIR resources into the permission
// categories that gate reading them.
package medical

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/healthstore/internal/errs"
)

// Classification is the permission category of a medical resource. Its
// string form doubles as the read permission name.
type Classification int

const (
	Unknown Classification = iota
	AllergiesIntolerances
	Conditions
	LaboratoryResults
	Medications
	PersonalDetails
	PractitionerDetails
	Procedures
	SocialHistory
	Vaccines
	Visits
	VitalSigns
)

var names = map[Classification]string{
	AllergiesIntolerances: "ALLERGIES_INTOLERANCES",
	Conditions:            "CONDITIONS",
	LaboratoryResults:     "LABORATORY_RESULTS",
	Medications:           "MEDICATIONS",
	PersonalDetails:       "PERSONAL_DETAILS",
	PractitionerDetails:   "PRACTITIONER_DETAILS",
	Procedures:            "PROCEDURES",
	SocialHistory:         "SOCIAL_HISTORY",
	Vaccines:              "VACCINES",
	Visits:                "VISITS",
	VitalSigns:            "VITAL_SIGNS",
}

func (c Classification) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// Classifications returns every known classification in numeric order.
func Classifications() []Classification {
	out := make([]Classification, 0, len(names))
	for c := range names {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names returns the permission names of all classifications.
func Names() []string {
	cs := Classifications()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// Parse returns the classification named s.
func Parse(s string) (Classification, error) {
	for c, n := range names {
		if n == s {
			return c, nil
		}
	}
	return Unknown, errs.ValidationField("classification", "unknown medical classification %q", s)
}

// byResourceType covers every resource type whose classification does not
// depend on its content.
var byResourceType = map[string]Classification{
	"AllergyIntolerance":  AllergiesIntolerances,
	"Condition":           Conditions,
	"Immunization":        Vaccines,
	"Medication":          Medications,
	"MedicationRequest":   Medications,
	"MedicationStatement": Medications,
	"Patient":             PersonalDetails,
	"Practitioner":        PractitionerDetails,
	"PractitionerRole":    PractitionerDetails,
	"Procedure":           Procedures,
	"Encounter":           Visits,
	"Location":            Visits,
	"Organization":        Visits,
}

// observationCategories maps the observation-category code system values.
var observationCategories = map[string]Classification{
	"laboratory":     LaboratoryResults,
	"vital-signs":    VitalSigns,
	"social-history": SocialHistory,
}

// Resource is the identity and classification extracted from a payload.
type Resource struct {
	Type           string
	ID             string
	Classification Classification
}

type payload struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Category     []struct {
		Coding []struct {
			System string `json:"system"`
			Code   string `json:"code"`
		} `json:"coding"`
	} `json:"category"`
}

// Classify parses a FHIR JSON resource and returns its type, id and
// classification. Observations are classified by the first recognised
// category code.
func Classify(data []byte) (Resource, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Resource{}, errs.ValidationField("payload", "payload is not a FHIR JSON object: %v", err)
	}
	if p.ResourceType == "" {
		return Resource{}, errs.ValidationField("payload", "payload has no resourceType")
	}
	if p.ID == "" {
		return Resource{}, errs.ValidationField("payload", "%s payload has no id", p.ResourceType)
	}
	res := Resource{Type: p.ResourceType, ID: p.ID}
	if c, ok := byResourceType[p.ResourceType]; ok {
		res.Classification = c
		return res, nil
	}
	if p.ResourceType != "Observation" {
		return Resource{}, errs.ValidationField("payload", "unsupported resource type %s", p.ResourceType)
	}
	for _, cat := range p.Category {
		for _, coding := range cat.Coding {
			if c, ok := observationCategories[coding.Code]; ok {
				res.Classification = c
				return res, nil
			}
		}
	}
	return Resource{}, errs.ValidationField("payload", "observation %s has no supported category", p.ID)
}
