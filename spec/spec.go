// Package spec embeds the OpenAPI document of the trip planner API.
// It is imported by the HTTP server to serve the document at /api/v1/openapi.yaml.
package spec

import _ "embed"

// OpenAPI contains the raw bytes of openapi.yaml, embedded at compile time.
//
//go:embed openapi.yaml
var OpenAPI []byte
