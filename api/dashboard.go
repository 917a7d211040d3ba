package api

import (
	"html/template"
	"net/http"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>botkeeper</title>
</head>
<body>
<h1>Bot Dashboard</h1>
<table>
  <tr><th>Field</th><th>Value</th></tr>
  <tr><td>State</td><td>{{ .State }}</td></tr>
  <tr><td>Running</td><td>{{ .Running }}</td></tr>
  <tr><td>Uptime</td><td>{{ .UptimeFormatted }}</td></tr>
  <tr><td>Worker alive</td><td>{{ .WorkerAlive }}</td></tr>
  <tr><td>Context ID</td><td>{{ .ContextID }}</td></tr>
  <tr><td>Generation</td><td>{{ .Generation }}</td></tr>
  <tr><td>Shutdown requested</td><td>{{ .ShutdownRequested }}</td></tr>
  <tr><td>Last error</td><td>{{ .LastError }}</td></tr>
</table>
</body>
</html>
`))

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, h.ctrl.Status()); err != nil {
		h.logger.WithError(err).Warn("dashboard render failed")
	}
}
