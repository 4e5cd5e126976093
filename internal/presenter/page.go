package presenter

import (
	_ "embed"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/index.html
var indexHTML string

var pageTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
}).Parse(indexHTML))

func RenderPage(w io.Writer, v View) error {
	return pageTemplate.Execute(w, v)
}
