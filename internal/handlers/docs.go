package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Accidentes API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	paginationParams := []map[string]interface{}{
		{
			"name":        "limit",
			"in":          "query",
			"description": "Records per page (1-100, default 20)",
			"required":    false,
			"schema":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "default": 20},
		},
		{
			"name":        "offset",
			"in":          "query",
			"description": "Rows to skip (default 0)",
			"required":    false,
			"schema":      map[string]interface{}{"type": "integer", "minimum": 0, "default": 0},
		},
		{
			"name":        "order",
			"in":          "query",
			"description": "Sort order by fecha",
			"required":    false,
			"schema": map[string]interface{}{
				"type":    "string",
				"enum":    []string{"fecha_asc", "fecha_desc"},
				"default": "fecha_desc",
			},
		},
	}

	accidentSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"accidente_id": map[string]string{"type": "integer"},
			"id_entidad":   map[string]string{"type": "integer"},
			"id_municipio": map[string]string{"type": "integer"},
			"fecha":        map[string]string{"type": "string", "format": "date-time"},
			"diasemana":    map[string]interface{}{"type": "string", "nullable": true},
			"urbana":       map[string]interface{}{"type": "string", "nullable": true},
			"suburbana":    map[string]interface{}{"type": "string", "nullable": true},
			"tipaccid":     map[string]interface{}{"type": "string", "nullable": true},
			"causaacci":    map[string]interface{}{"type": "string", "nullable": true},
			"sexo":         map[string]interface{}{"type": "string", "nullable": true},
			"aliento":      map[string]interface{}{"type": "string", "nullable": true},
			"cinturon":     map[string]interface{}{"type": "string", "nullable": true},
			"clasacc":      map[string]interface{}{"type": "string", "nullable": true},
			"estatus":      map[string]interface{}{"type": "string", "nullable": true},
		},
	}

	searchResponse := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"total": map[string]string{"type": "integer"},
			"items": map[string]interface{}{
				"type":  "array",
				"items": map[string]string{"$ref": "#/components/schemas/Accident"},
			},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Accidentes API",
			"description": "Read/search API over the accidentes_100 snapshot with token-gated administrative refresh",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Accident":       accidentSchema,
				"SearchResponse": searchResponse,
			},
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
		"paths": map[string]interface{}{
			"/records": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List accidents",
					"parameters": paginationParams,
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Paginated accident list",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]string{"$ref": "#/components/schemas/SearchResponse"},
								},
							},
						},
					},
				},
			},
			"/records/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get one accident by surrogate id",
					"parameters": []map[string]interface{}{
						{
							"name":     "id",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "integer"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "The accident record",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]string{"$ref": "#/components/schemas/Accident"},
								},
							},
						},
						"404": map[string]interface{}{"description": "Record not found"},
					},
				},
			},
			"/search": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Search accidents",
					"parameters": append([]map[string]interface{}{
						{
							"name":        "q",
							"in":          "query",
							"description": "Keyword matched against tipaccid, causaacci, urbana, suburbana",
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":   "id_entidad",
							"in":     "query",
							"schema": map[string]string{"type": "integer"},
						},
						{
							"name":   "id_municipio",
							"in":     "query",
							"schema": map[string]string{"type": "integer"},
						},
						{
							"name":        "clasacc",
							"in":          "query",
							"description": "Case-insensitive classification match",
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "desde",
							"in":          "query",
							"description": "Inclusive lower fecha bound (YYYY-MM-DD)",
							"schema":      map[string]string{"type": "string", "format": "date"},
						},
						{
							"name":        "hasta",
							"in":          "query",
							"description": "Inclusive upper fecha bound (YYYY-MM-DD)",
							"schema":      map[string]string{"type": "string", "format": "date"},
						},
					}, paginationParams...),
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Filtered accident list",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]string{"$ref": "#/components/schemas/SearchResponse"},
								},
							},
						},
					},
				},
			},
			"/admin/refresh-etl": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":  "Re-run the ETL pipeline and reload the snapshot table",
					"security": []map[string][]string{{"bearerAuth": {}}},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Pipeline completed; body carries the inserted row count"},
						"401": map[string]interface{}{"description": "Missing, malformed, expired, or invalid token"},
						"409": map[string]interface{}{"description": "Another refresh is already running"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Service health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service healthy"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
