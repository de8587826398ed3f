package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLabelsRoundTrip(t *testing.T) {
	labels, err := ParseLabels(`{service="checkout",env="prod"}`)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"service": "checkout", "env": "prod"}, labels)
}

func TestParseLabelsEmpty(t *testing.T) {
	labels, err := ParseLabels("")
	require.NoError(t, err)
	require.Empty(t, labels)
}

func TestParseLabelsEscapedQuote(t *testing.T) {
	labels, err := ParseLabels(`{msg="say \"hi\""}`)
	require.NoError(t, err)
	require.Equal(t, `say "hi"`, labels["msg"])
}

func TestParseLabelsRejectsMissingBraces(t *testing.T) {
	_, err := ParseLabels(`service="checkout"`)
	require.Error(t, err)
}

func TestParseLabelsRejectsDuplicateKey(t *testing.T) {
	_, err := ParseLabels(`{a="1",a="2"}`)
	require.Error(t, err)
}

func TestParseLabelsRejectsUnterminatedValue(t *testing.T) {
	_, err := ParseLabels(`{a="1}`)
	require.Error(t, err)
}

func TestParseLabelsRejectsOversizedString(t *testing.T) {
	huge := `{a="` + strings.Repeat("x", 17*1024) + `"}`
	_, err := ParseLabels(huge)
	require.Error(t, err)
}

func TestFormatLabelsInverse(t *testing.T) {
	original := map[string]string{"a": "1"}
	s := FormatLabels(original)
	parsed, err := ParseLabels(s)
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}
