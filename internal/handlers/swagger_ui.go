package handlers

import (
	"html/template"
	"net/http"
)

// SwaggerUI serves the interactive documentation page for the accident API.
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	tmpl := `<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <title>API de Accidentes de Tránsito</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
    <style>
        html { box-sizing: border-box; overflow: -moz-scrollbars-vertical; overflow-y: scroll; }
        *, *:before, *:after { box-sizing: inherit; }
        body { margin:0; padding:0; }
        .page-header { background: #1b1b1b; color: #fff; padding: 12px 24px; font-family: sans-serif; }
        .page-header h1 { margin: 0; font-size: 1.2em; }
        .page-header p { margin: 4px 0 0; font-size: 0.85em; color: #bbb; }
        .page-header a { color: #8ab4f8; }
    </style>
</head>
<body>
    <div class="page-header">
        <h1>API de Accidentes de Tránsito</h1>
        <p>Consulta la muestra de accidentes (accidentes_100) vía /records y /search.
           Esquema OpenAPI: <a href="/api/docs/openapi.json">/api/docs/openapi.json</a></p>
    </div>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            const ui = SwaggerUIBundle({
                url: "/api/docs/openapi.json",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout"
            });
            window.ui = ui;
        };
    </script>
</body>
</html>`

	t := template.Must(template.New("swagger").Parse(tmpl))
	w.Header().Set("Content-Type", "text/html")
	t.Execute(w, nil)
}
