package gatewayhttp

import (
	"strings"
	"testing"
)

func TestConfirmPage_SuccessEscapesMessage(t *testing.T) {
	html := confirmPage(true, "Dispositivo confirmado <script>")
	if !strings.Contains(html, "Dispositivo confirmado &lt;script&gt;") {
		t.Fatal("expected message to be HTML-escaped")
	}
	if !strings.Contains(html, "Dispositivo confirmado") {
		t.Fatal("expected success title")
	}
}

func TestConfirmPage_FailureUsesErrorTitle(t *testing.T) {
	html := confirmPage(false, "Token não encontrado.")
	if !strings.Contains(html, "Não foi possível confirmar") {
		t.Fatal("expected error title for ok=false")
	}
}
