package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

//go:embed onboarding.schema.json
var onboardingSchemaJSON []byte

// ErrInvalidOnboarding is returned when generated onboarding output does not
// match the expected shape
var ErrInvalidOnboarding = errors.New("invalid onboarding output")

// Onboarding is the structured profile produced for a new user
type Onboarding struct {
	KeyTruth string   `json:"keyTruth"`
	Goals    []string `json:"goals"`
	AIVoice  string   `json:"aiVoice"`
}

var onboardingSchema *jsonschema.Schema

func init() {
	schema, err := jsonschema.NewCompiler().Compile(onboardingSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("compile onboarding schema: %v", err))
	}
	onboardingSchema = schema
}

// StripFences removes a surrounding markdown code fence, if any
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseOnboarding strips fences from raw model output and validates it
func ParseOnboarding(raw string) (*Onboarding, error) {
	body := StripFences(raw)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOnboarding, err)
	}

	result := onboardingSchema.Validate(doc)
	if !result.IsValid() {
		var messages []string
		for field, evalErr := range result.Errors {
			messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		sort.Strings(messages)
		return nil, fmt.Errorf("%w: %s", ErrInvalidOnboarding, strings.Join(messages, "; "))
	}

	var out Onboarding
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOnboarding, err)
	}
	return &out, nil
}
