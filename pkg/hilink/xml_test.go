package hilink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField(t *testing.T) {
	tests := []struct {
		name string
		body string
		tag  string
		want string
	}{
		{"simple", "<response><TokInfo>abc</TokInfo></response>", "TokInfo", "abc"},
		{"with header", `<?xml version="1.0" encoding="UTF-8"?><response><SesInfo>SessionID=xyz</SesInfo></response>`, "SesInfo", "SessionID=xyz"},
		{"whitespace", "<response>\n  <WanIPAddress>  10.1.2.3 \n</WanIPAddress>\n</response>", "WanIPAddress", "10.1.2.3"},
		{"attributes", `<response><WanIPAddress type="v4">10.1.2.3</WanIPAddress></response>`, "WanIPAddress", "10.1.2.3"},
		{"nested", "<response><Networks><Network><FullName>Telkomsel</FullName></Network></Networks></response>", "FullName", "Telkomsel"},
		{"root text", "<response>OK</response>", "response", "OK"},
		{"empty element", "<response><SesInfo></SesInfo></response>", "SesInfo", ""},
		{"absent", "<response><TokInfo>abc</TokInfo></response>", "SesInfo", ""},
		{"error code", "<error><code>125002</code><message></message></error>", "code", "125002"},
		{"malformed", "<response><TokInfo>abc</response>", "TokInfo", ""},
		{"not xml", "upstream connect error", "TokInfo", ""},
		{"empty body", "", "TokInfo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Field(tt.body, tt.tag))
		})
	}
}

func TestFieldsRepeated(t *testing.T) {
	body := `<response><Networks>
		<Network><FullName>Telkomsel</FullName><Numeric>51010</Numeric></Network>
		<Network><FullName>Indosat</FullName><Numeric>51001</Numeric></Network>
		<Network><FullName>XL</FullName><Numeric>51011</Numeric></Network>
	</Networks></response>`

	assert.Equal(t, []string{"Telkomsel", "Indosat", "XL"}, Fields(body, "FullName"))
	assert.Equal(t, "Telkomsel", Field(body, "FullName"))
	assert.Nil(t, Fields("<broken", "FullName"))
}

func TestErrorCode(t *testing.T) {
	code, isErr := errorCode("<error><code>108006</code></error>")
	assert.True(t, isErr)
	assert.Equal(t, "108006", code)

	code, isErr = errorCode("<error></error>")
	assert.True(t, isErr)
	assert.Empty(t, code)

	_, isErr = errorCode("<response>OK</response>")
	assert.False(t, isErr)
	assert.True(t, isOK("<response>OK</response>"))
	assert.False(t, isOK("<response><State>0</State></response>"))
}
