package camera

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathTemplate_Render(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"関数形式", "/tmp/snapshot_{{ entity_id }}.jpg", "/tmp/snapshot_camera.garage.jpg"},
		{"変数形式", "/tmp/{{ .entity_id }}/clip.mp4", "/tmp/camera.garage/clip.mp4"},
		{"プレースホルダーなし", "/tmp/fixed.jpg", "/tmp/fixed.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParsePathTemplate(tt.template)
			require.NoError(t, err)

			got, err := tmpl.Render("camera.garage")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.template, tmpl.String())
		})
	}
}

func TestPathTemplate_RenderPerEntity(t *testing.T) {
	tmpl := MustParsePathTemplate("/media/{{ entity_id }}.jpg")

	first, err := tmpl.Render("camera.one")
	require.NoError(t, err)
	second, err := tmpl.Render("camera.two")
	require.NoError(t, err)

	assert.Equal(t, "/media/camera.one.jpg", first)
	assert.Equal(t, "/media/camera.two.jpg", second)
}

func TestPathTemplate_Now(t *testing.T) {
	tmpl := MustParsePathTemplate(`/media/{{ now.Format "2006" }}.jpg`)

	got, err := tmpl.Render("camera.one")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "/media/"+time.Now().Format("2006")))
}

func TestParsePathTemplate_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "/tmp/{{ entity_id", "/tmp/{{ unknown_func }}"} {
		_, err := ParsePathTemplate(raw)
		assert.Error(t, err, raw)
	}

	tmpl := MustParsePathTemplate("/tmp/{{ .other }}.jpg")
	_, err := tmpl.Render("camera.one")
	assert.Error(t, err)

	assert.Panics(t, func() { MustParsePathTemplate("") })
}
