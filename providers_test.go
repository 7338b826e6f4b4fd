package statements

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTemplate(t *testing.T) {
	f, err := NewTemplateFormatter(WithTemplate("label", "Classify: {{ text }}"))
	require.NoError(t, err)
	assert.Equal(t, "label", f.Name())

	prompt, err := f.Format(Record{"text": "the cat sat"})
	require.NoError(t, err)
	assert.Equal(t, "Classify: the cat sat", prompt)
}

func TestWithVar(t *testing.T) {
	f, err := NewTemplateFormatter(
		WithTemplate("test", "{{ task }} for {{ item.id }}"),
		WithVar("task", "Summarise"),
	)
	require.NoError(t, err)

	prompt, err := f.Format(Record{"id": "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "Summarise for doc-1", prompt)
}

func TestItemFieldsShadowVars(t *testing.T) {
	f, err := NewTemplateFormatter(
		WithTemplate("test", "{{ lang }}"),
		WithVar("lang", "en"),
	)
	require.NoError(t, err)

	prompt, err := f.Format(Record{"lang": "zh"})
	require.NoError(t, err)
	assert.Equal(t, "zh", prompt)
}

func TestWithTemplateFile(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/stance.twig": {Data: []byte("Speaker: {{ speaker }}\n{% if note %}Note: {{ note }}{% endif %}")},
	}

	t.Run("loads and names", func(t *testing.T) {
		f, err := NewTemplateFormatter(WithTemplateFile(fsys, "prompts/stance.twig"))
		require.NoError(t, err)
		assert.Equal(t, "stance", f.Name())

		prompt, err := f.Format(Record{"speaker": "Ann", "note": ""})
		require.NoError(t, err)
		assert.Equal(t, "Speaker: Ann\n", prompt)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewTemplateFormatter(WithTemplateFile(fsys, "prompts/missing.twig"))
		assert.Error(t, err)
	})
}

func TestWithRequiredFields(t *testing.T) {
	f, err := NewTemplateFormatter(
		WithTemplate("test", "{{ text }}"),
		WithRequiredFields("text"),
	)
	require.NoError(t, err)

	tests := []struct {
		name string
		item Record
		want string
	}{
		{"present", Record{"text": "hello"}, "hello"},
		{"missing", Record{}, ""},
		{"nil", Record{"text": nil}, ""},
		{"blank", Record{"text": "   "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := f.Format(tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, prompt)
		})
	}
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	f, err := NewTemplateFormatter(
		WithTemplate("test", "Now: {{ current_time }}"),
		withClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	prompt, err := f.Format(Record{})
	require.NoError(t, err)
	assert.Equal(t, "Now: Mar 05, 2024 02:07:09 PM", prompt)
}

func TestNewTemplateFormatter_Empty(t *testing.T) {
	_, err := NewTemplateFormatter()
	assert.Error(t, err)

	_, err = NewTemplateFormatter(WithTemplate("blank", "  \n"))
	assert.Error(t, err)
}

func TestFormat_TemplateError(t *testing.T) {
	f, err := NewTemplateFormatter(WithTemplate("broken", "{% if %}"))
	require.NoError(t, err)

	_, err = f.Format(Record{})
	assert.Error(t, err)
}
