package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outreachly/drip-engine/internal/model"
)

func TestRenderTemplate(t *testing.T) {
	lead := &model.Lead{
		FirstName: "Sam",
		LastName:  "Reyes",
		Phone:     "5551234567",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "all placeholders",
			template: "Hi {{first}}, it's {{phone}}",
			want:     "Hi Sam, it's 5551234567",
		},
		{
			name:     "case insensitive",
			template: "Hi {{First}} {{LAST}}",
			want:     "Hi Sam Reyes",
		},
		{
			name:     "whitespace inside braces",
			template: "Hi {{ first }}",
			want:     "Hi Sam",
		},
		{
			name:     "underscore aliases",
			template: "{{first_name}} {{last_name}}",
			want:     "Sam Reyes",
		},
		{
			name:     "unknown placeholder becomes empty",
			template: "Hi {{nickname}}!",
			want:     "Hi !",
		},
		{
			name:     "no placeholders",
			template: "Just checking in",
			want:     "Just checking in",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RenderTemplate(tc.template, lead))
		})
	}
}

func TestRenderTemplateMissingFields(t *testing.T) {
	lead := &model.Lead{Phone: "5551234567"}
	got := RenderTemplate("Hi {{first}}, it's {{phone}}", lead)
	assert.Equal(t, "Hi , it's 5551234567", got)
}

func TestRenderTemplateNilLead(t *testing.T) {
	assert.Equal(t, "Hi ", RenderTemplate("Hi {{first}}", nil))
}
