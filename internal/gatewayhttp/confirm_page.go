package gatewayhttp

import "html"

// confirmPage renders the self-contained HTML success/error page served to
// browsers landing on the GET /confirmDevice link from a confirmation
// email. It carries no external assets: everything is inline.
func confirmPage(ok bool, message string) string {
	title := "Dispositivo confirmado"
	color := "#16a34a"
	if !ok {
		title = "Não foi possível confirmar"
		color = "#dc2626"
	}
	return `<!DOCTYPE html>
<html lang="pt-br">
<head>
<meta charset="utf-8">
<title>` + html.EscapeString(title) + `</title>
<style>
  body { font-family: system-ui, sans-serif; background: #f8fafc; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  .card { background: #fff; border-radius: 12px; box-shadow: 0 1px 3px rgba(0,0,0,.1); padding: 2.5rem; max-width: 420px; text-align: center; }
  h1 { color: ` + color + `; font-size: 1.25rem; margin-bottom: .5rem; }
  p { color: #475569; }
</style>
</head>
<body>
  <div class="card">
    <h1>` + html.EscapeString(title) + `</h1>
    <p>` + html.EscapeString(message) + `</p>
  </div>
</body>
</html>`
}
