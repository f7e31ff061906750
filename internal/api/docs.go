package api

import (
	"fmt"
	"html"
)

const apiTitle = "Portal Harness Reports"

// docsPage renders the Stoplight Elements viewer for /openapi.json. With
// live events it links the SSE stream under the viewer.
func docsPage(live bool) []byte {
	footer := ""
	if live {
		footer = `
  <p style="position: fixed; bottom: 0; right: 1em; font: 12px sans-serif;">
    live run events: <a href="/api/v1/events">/api/v1/events</a> (SSE), /api/v1/events/ws (WebSocket)
  </p>`
	}
	return []byte(fmt.Sprintf(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>%s</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0;">
  <elements-api apiDescriptionUrl="/openapi.json" router="hash" layout="sidebar" darkMode />%s
</body>
</html>`, html.EscapeString(apiTitle), footer))
}
