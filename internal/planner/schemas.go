package planner

import "encoding/json"

// Result schemas for the structured calls. Each is the input schema of the
// forced result tool; the llm package validates model output against it
// before decoding.

var classificationSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "category": {
      "type": "string",
      "enum": ["feature", "bugfix", "refactor", "documentation", "infrastructure", "investigation"]
    },
    "complexity": {"type": "integer", "minimum": 1, "maximum": 5},
    "affectedComponents": {"type": "array", "items": {"type": "string"}},
    "planningStrategy": {
      "type": "string",
      "enum": ["sequential", "parallel", "adaptive"]
    },
    "runtimeTag": {"type": "string"}
  },
  "required": ["category", "complexity", "planningStrategy"],
  "additionalProperties": false
}`)

var questionsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "questions": {
      "type": "array",
      "items": {"type": "string"},
      "maxItems": 5
    }
  },
  "required": ["questions"],
  "additionalProperties": false
}`)

var productSpecSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "overview": {"type": "string"},
    "goals": {"type": "array", "items": {"type": "string"}},
    "nonGoals": {"type": "array", "items": {"type": "string"}},
    "technicalRequirements": {"type": "array", "items": {"type": "string"}},
    "edgeCases": {"type": "array", "items": {"type": "string"}},
    "acceptanceCriteria": {"type": "array", "items": {"type": "string"}},
    "components": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["title", "overview"],
  "additionalProperties": false
}`)

var taskPlanSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "strategy": {"type": "string", "enum": ["sequential", "parallel"]},
    "tasks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "role": {
            "type": "string",
            "enum": ["researcher", "coder", "refactorer", "tester", "reviewer", "deployer"]
          },
          "description": {"type": "string"},
          "inputContext": {"type": "string"},
          "successCriteria": {"type": "string"},
          "targetFiles": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["role", "description"],
        "additionalProperties": false
      }
    }
  },
  "required": ["strategy", "tasks"],
  "additionalProperties": false
}`)
