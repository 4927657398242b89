package camera

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// PathTemplate はファイル名テンプレート
//
// text/template構文で、{{ entity_id }} と {{ .entity_id }} の両方を受け付ける。
// now は描画時刻の time.Time を返す。
type PathTemplate struct {
	raw  string
	tmpl *template.Template
}

// placeholderFuncs はパース時に関数名を解決させるためのダミー
var placeholderFuncs = template.FuncMap{
	"entity_id": func() string { return "" },
	"now":       time.Now,
}

// ParsePathTemplate はテンプレート文字列をパースする
func ParsePathTemplate(raw string) (*PathTemplate, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("テンプレートが空です")
	}

	tmpl, err := template.New("filename").
		Option("missingkey=error").
		Funcs(placeholderFuncs).
		Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("テンプレートのパースに失敗: %w", err)
	}

	return &PathTemplate{raw: raw, tmpl: tmpl}, nil
}

// MustParsePathTemplate はパースに失敗するとpanicする
func MustParsePathTemplate(raw string) *PathTemplate {
	t, err := ParsePathTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Render はエンティティIDを埋め込んでパスを生成する
func (p *PathTemplate) Render(entityID string) (string, error) {
	tmpl, err := p.tmpl.Clone()
	if err != nil {
		return "", fmt.Errorf("テンプレートの複製に失敗: %w", err)
	}

	tmpl.Funcs(template.FuncMap{
		"entity_id": func() string { return entityID },
	})

	var sb strings.Builder
	vars := map[string]any{"entity_id": entityID}
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("テンプレートの描画に失敗: %w", err)
	}

	return sb.String(), nil
}

func (p *PathTemplate) String() string {
	return p.raw
}
