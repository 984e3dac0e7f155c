package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadPageMeta(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantDesc  string
	}{
		{
			name: "title and description",
			input: `<html><head>
				<title>  Checkout  </title>
				<meta name="Description" content="Pay for your order">
			</head><body></body></html>`,
			wantTitle: "Checkout",
			wantDesc:  "Pay for your order",
		},
		{
			name:      "first title wins",
			input:     `<html><head><title>One</title></head><body><svg><title>Two</title></svg></body></html>`,
			wantTitle: "One",
		},
		{
			name:     "meta without name is ignored",
			input:    `<html><head><meta content="nope"><meta name="description" content="yes"></head></html>`,
			wantDesc: "yes",
		},
		{
			name:  "empty document",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := readPageMeta("https://shop.test/", tt.input)
			assert.Equal(t, "https://shop.test/", meta.URL)
			assert.Equal(t, tt.wantTitle, meta.Title)
			assert.Equal(t, tt.wantDesc, meta.Description)
		})
	}
}
