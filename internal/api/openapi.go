package api

import _ "embed"

// openAPIDocument is served at /openapi.json. Generating the real document
// from route definitions is an external collaborator's job per the
// project's scope; this static copy just satisfies the route.
//go:embed static/openapi.json
var openAPIDocument string
