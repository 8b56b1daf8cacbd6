package triggers

import (
	"fmt"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// payloadSchemas describe the business events accepted for each trigger type.
var payloadSchemas = map[string]string{
	models.TriggerTypeJobStatusChanged: `{
		"type": "object",
		"required": ["job", "to_status"],
		"properties": {
			"job": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": ["string", "number"]},
					"status": {"type": "string"}
				}
			},
			"from_status": {"type": "string"},
			"to_status": {"type": "string", "minLength": 1},
			"client": {"type": "object"},
			"user_id": {"type": "string"}
		}
	}`,
	models.TriggerTypeInvoiceOverdue: `{
		"type": "object",
		"required": ["invoice"],
		"properties": {
			"invoice": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": ["string", "number"]},
					"total": {"type": ["number", "string"]},
					"dueDate": {"type": "string"}
				}
			},
			"client": {"type": "object"},
			"user_id": {"type": "string"}
		}
	}`,
	models.TriggerTypeClientCreated: `{
		"type": "object",
		"required": ["client"],
		"properties": {
			"client": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": ["string", "number"]},
					"email": {"type": "string"},
					"phone": {"type": "string"}
				}
			},
			"user_id": {"type": "string"}
		}
	}`,
}

func compileSchemas() (map[string]*gojsonschema.Schema, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(payloadSchemas))

	for triggerType, raw := range payloadSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid payload schema for %s: %w", triggerType, err)
		}

		schemas[triggerType] = schema
	}

	return schemas, nil
}
