package generation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hitoshi/jobassist/internal/model"
)

const structuredResumeSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["contactInfo", "summary", "experience", "education", "projects", "skills"],
  "properties": {
    "contactInfo": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "email": {"type": "string"},
        "phone": {"type": "string"},
        "linkedin": {"type": "string"},
        "github": {"type": "string"},
        "portfolio": {"type": "string"}
      }
    },
    "summary": {"type": "string", "minLength": 1},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "company", "points"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "company": {"type": "string", "minLength": 1},
          "location": {"type": "string"},
          "dates": {"type": "string"},
          "points": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["institution"],
        "properties": {
          "institution": {"type": "string", "minLength": 1},
          "degree": {"type": "string"},
          "dates": {"type": "string"},
          "details": {"type": "string"}
        }
      }
    },
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "technologies": {"type": "array", "items": {"type": "string"}},
          "link": {"type": "string"}
        }
      }
    },
    "skills": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["category", "list"],
        "properties": {
          "category": {"type": "string", "minLength": 1},
          "list": {"type": "array", "minItems": 1, "items": {"type": "string"}}
        }
      }
    }
  }
}`

var structuredResumeSchema = mustSchema(structuredResumeSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid json schema: %v", err))
	}
	return s
}

// validateStructuredResume は整形済みの職務経歴をスキーマで検証する。
func validateStructuredResume(r *model.StructuredResume) error {
	result, err := structuredResumeSchema.Validate(gojsonschema.NewGoLoader(r))
	if err != nil {
		return fmt.Errorf("failed to validate structured resume: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", errWrongShape, strings.Join(msgs, "; "))
}
