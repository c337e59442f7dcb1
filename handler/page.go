// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"

	"github.com/hashicorp/cap-identity/config"
)

// Page names.
const (
	PageCancel        = config.RouteCancel
	PagePostLogout    = config.RoutePostLogout
	PageVerifyFail    = config.RouteVerifyFail
	PageVerifySuccess = config.RouteVerifySuccess
	PageError         = "error"
	PageNotFound      = "not_found"
)

// Page is what a PageFunc renders.
type Page struct {
	Name   string
	Status int
	Title  string

	// Claims are the verified claim names of the session, sorted. Only set
	// for the verify pages.
	Claims []string
}

// PageFunc writes page as the response to r.
type PageFunc func(w http.ResponseWriter, r *http.Request, page Page)

var pageTitles = map[string]string{
	PageCancel:        "Verification canceled",
	PagePostLogout:    "Signed out",
	PageVerifyFail:    "Verification failed",
	PageVerifySuccess: "Verification succeeded",
	PageError:         "Something went wrong",
	PageNotFound:      "Not found",
}

const pageTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <main id="{{.Name}}">
    <h1>{{.Title}}</h1>
    {{- if .Claims}}
    <ul id="claims">
      {{- range .Claims}}
      <li>{{.}}</li>
      {{- end}}
    </ul>
    {{- end}}
  </main>
</body>
</html>
`

var defaultPageTemplate = template.Must(template.New("page").Parse(pageTmpl))

// DefaultPage renders a minimal html page.
func DefaultPage(w http.ResponseWriter, _ *http.Request, page Page) {
	if page.Title == "" {
		page.Title = pageTitles[page.Name]
	}
	if page.Status == 0 {
		page.Status = http.StatusOK
	}
	var buf bytes.Buffer
	if err := defaultPageTemplate.Execute(&buf, page); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(page.Status)
	_, _ = w.Write(buf.Bytes())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
