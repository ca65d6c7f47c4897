package validator

const createSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"description": {"type": ["string", "null"]}
	},
	"required": ["title"]
}`

const updateSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"description": {"type": ["string", "null"]},
		"completed": {"type": "boolean"},
		"completion_date": {"type": ["string", "null"], "format": "completion-date"}
	}
}`
