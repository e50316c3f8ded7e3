package prompt

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
)

// AnalysisSchemaName names the structured output format sent to providers.
const AnalysisSchemaName = "sitcom_character_analysis"

type analysisMatchSchema struct {
	Character  string `json:"character" jsonschema:"required,description=Character name exactly as listed in the catalog"`
	Show       string `json:"show" jsonschema:"required"`
	Confidence int    `json:"confidence" jsonschema:"required,minimum=0,maximum=100"`
	Reasoning  string `json:"reasoning" jsonschema:"required"`
}

type analysisSchema struct {
	TopMatches         []analysisMatchSchema `json:"topMatches" jsonschema:"required,minItems=1"`
	IdentifiedTraits   []string              `json:"identifiedTraits" jsonschema:"required"`
	PersonalitySummary string                `json:"personalitySummary" jsonschema:"required"`
}

var (
	analysisSchemaOnce sync.Once
	analysisSchemaMap  map[string]any
)

// AnalysisSchema returns the JSON Schema of the topMatches object. Callers
// receive a fresh copy they may mutate.
func AnalysisSchema() map[string]any {
	analysisSchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		schema := reflector.Reflect(&analysisSchema{})
		m, err := schemaToMap(schema)
		if err != nil {
			panic(err)
		}
		delete(m, "$schema")
		delete(m, "$id")
		ensureStrictCompliance(m)
		analysisSchemaMap = m
	})
	return deepCopy(analysisSchemaMap)
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrictCompliance marks every object closed with all properties
// required, as strict structured output modes demand.
func ensureStrictCompliance(schema map[string]any) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]any); ok {
			required := make([]string, 0, len(properties))
			for name := range properties {
				required = append(required, name)
			}
			sort.Strings(required)
			if len(required) > 0 {
				schema[requiredKey] = required
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]any); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				ensureStrictCompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]any); ok {
		ensureStrictCompliance(items)
	}
}

func deepCopy(m map[string]any) map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
