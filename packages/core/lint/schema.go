package lint

// descriptorSchema describes the first document of a descriptor file after
// its mapping keys have been lowercased.
const descriptorSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "capis request descriptor",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "method": {"enum": ["GET", "POST", "PUT", "UPDATE", "DELETE"]},
    "host": {"$ref": "#/definitions/scalar"},
    "path": {"$ref": "#/definitions/scalar"},
    "url": {"$ref": "#/definitions/scalar"},
    "secure": {"$ref": "#/definitions/scalar"},
    "timeout": {
      "anyOf": [
        {"type": "integer"},
        {"type": "string", "pattern": "^\\s*[+-]?[0-9]+"}
      ]
    },
    "headers": {"$ref": "#/definitions/pairs"},
    "params": {"$ref": "#/definitions/pairs"},
    "cookies": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "value"],
        "properties": {
          "name": {"$ref": "#/definitions/scalar"},
          "value": {"$ref": "#/definitions/scalar"},
          "domain": {"$ref": "#/definitions/scalar"},
          "path": {"$ref": "#/definitions/scalar"},
          "expires": {"$ref": "#/definitions/scalar"},
          "httponly": {"$ref": "#/definitions/scalar"},
          "secure": {"$ref": "#/definitions/scalar"}
        }
      }
    }
  },
  "definitions": {
    "scalar": {"type": ["string", "number", "integer", "boolean", "null"]},
    "pairs": {
      "oneOf": [
        {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "key": {"$ref": "#/definitions/scalar"},
              "name": {"$ref": "#/definitions/scalar"},
              "value": {"$ref": "#/definitions/scalar"}
            },
            "required": ["value"],
            "anyOf": [{"required": ["key"]}, {"required": ["name"]}]
          }
        },
        {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/scalar"}
        }
      ]
    }
  }
}`
