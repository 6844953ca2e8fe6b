package api

import "net/http"

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the bridge routes.
// messageTypes populates the enum of the /message request body.
func buildOpenAPIDoc(messageTypes []string) map[string]any {
	errorResponse := func(desc string) map[string]any {
		return map[string]any{
			"description": desc,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/Error"},
				},
			},
		}
	}

	typeSchema := map[string]any{"type": "string"}
	if len(messageTypes) > 0 {
		typeSchema["enum"] = messageTypes
	}

	paths := map[string]any{
		"/healthz": map[string]any{
			"get": map[string]any{
				"operationId": "healthz",
				"summary":     "Bridge liveness and counters",
				"security":    []any{},
				"responses": map[string]any{
					"200": map[string]any{"description": "Bridge is up"},
				},
			},
		},
		"/message": map[string]any{
			"post": map[string]any{
				"operationId": "message",
				"summary":     "Invoke a bridge message handler",
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type":                 "object",
								"required":             []string{"type"},
								"properties":           map[string]any{"type": typeSchema},
								"additionalProperties": true,
							},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Handler result"},
					"400": errorResponse("Invalid or unknown message"),
					"404": errorResponse("Resource not found"),
					"500": errorResponse("Handler failed"),
				},
			},
		},
		"/overlay": map[string]any{
			"post": map[string]any{
				"operationId": "overlay",
				"summary":     "Show an image overlay",
				"parameters": []any{
					queryParam("id", "string", true),
					queryParam("width", "integer", true),
					queryParam("height", "integer", true),
					queryParam("x", "integer", true),
					queryParam("y", "integer", true),
					queryParam("animDuration", "integer", false),
					queryParam("animKFCount", "integer", false),
				},
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/octet-stream": map[string]any{
							"schema": map[string]any{"type": "string", "format": "binary"},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Overlay shown"},
					"400": errorResponse("Invalid parameters or render failure"),
					"413": errorResponse("Image too large"),
				},
			},
		},
		"/bridge": map[string]any{
			"get": map[string]any{
				"operationId": "bridge",
				"summary":     "WebSocket upgrade for the message channel",
				"parameters": []any{
					map[string]any{
						"name":        "role",
						"in":          "query",
						"description": "application (default, supervised by the watchdog) or tool",
						"schema":      map[string]any{"type": "string", "enum": []string{"application", "tool"}},
					},
				},
				"responses": map[string]any{
					"101": map[string]any{"description": "Switching protocols"},
				},
			},
		},
		"/events": map[string]any{
			"get": map[string]any{
				"operationId": "events",
				"summary":     "Server-sent bridge events",
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Event stream",
						"content":     map[string]any{"text/event-stream": map[string]any{}},
					},
				},
			},
		},
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Signage Bridge",
			"version": "1.0",
		},
		"paths":    paths,
		"security": []any{map[string]any{"BearerAuth": []string{}}},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"Error": map[string]any{
					"type":       "object",
					"properties": map[string]any{"error": map[string]any{"type": "string"}},
				},
			},
		},
	}
}

func queryParam(name, typ string, required bool) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "query",
		"required": required,
		"schema":   map[string]any{"type": typ},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	var types []string
	if s.deps.Dispatcher != nil {
		types = s.deps.Dispatcher.Types()
	}
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(types))
}
