package browser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formHTML = `<html><head><title> Fênix - Laudos </title></head><body>
<form>
  <input name="solicitante" value="Geocat">
  <input name="token" type="hidden" value="secret">
  <input name="sinistros[0].idade" value="8">
  <textarea name="objetivo">Relatório do Núcleo CS1</textarea>
  <select name="urgencia"><option>Baixa</option><option selected>Média</option></select>
  <div class="css-1dimb5e-singleValue">CS</div>
  <div role="alert">Campo obrigatório</div>
</form></body></html>`

func TestSummarizeForm(t *testing.T) {
	snap, err := SummarizeForm(formHTML)
	require.NoError(t, err)

	assert.Equal(t, "Fênix - Laudos", snap.Title)
	want := []FieldState{
		{Name: "objetivo", Value: "Relatório do Núcleo CS1"},
		{Name: "sinistros[0].idade", Value: "8"},
		{Name: "solicitante", Value: "Geocat"},
		{Name: "urgencia", Value: "Média"},
	}
	if diff := cmp.Diff(want, snap.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"CS"}, snap.Selections)
	assert.Equal(t, []string{"Campo obrigatório"}, snap.Alerts)
	assert.Contains(t, snap.String(), `solicitante="Geocat"`)
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "css(#a)", CSS("#a").String())
	assert.Equal(t, "xpath(//b)", XPath("//b").String())
	assert.Equal(t, "text(button ~ /Enviar/)", Text("button", "Enviar").String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcd", 2))
}
