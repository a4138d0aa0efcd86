package api

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"covid-dashboard/internal/engine"
	"covid-dashboard/internal/models"
	"covid-dashboard/internal/present"
)

const pageTitle = "COVID-19 Data Analysis Project (Interactive Dashboard)"

//go:embed templates/*.html
var templateFS embed.FS

// TemplateRenderer implements echo.Renderer over the embedded templates.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

type tab struct {
	Key    string
	Label  string
	Active bool
}

type choice struct {
	Value    string
	Selected bool
}

type dashboardPage struct {
	Title    string
	Tabs     []tab
	View     models.View
	ChartURL string
	Metrics  []choice // empty when the view takes no metric
	States   []choice // empty unless the states view is active
}

// Dashboard renders the single page UI: a tab bar, the selectors the active
// tab takes, its summary cards and an <img> of its chart.
func (h *Handler) Dashboard(c echo.Context) error {
	ds := h.data.Load()
	name := c.QueryParam("view")
	if name == "" {
		name = present.ViewGlobal
	}
	if _, ok := present.Tabs[name]; !ok {
		return errorJSON(c, http.StatusNotFound, fmt.Sprintf("%s: %q", errUnknownView, name))
	}

	page := dashboardPage{Title: pageTitle}
	for _, key := range present.Views {
		page.Tabs = append(page.Tabs, tab{Key: key, Label: present.Tabs[key], Active: key == name})
	}

	view, err := h.buildView(ds, name, c)
	if err != nil {
		return h.viewError(c, name, err)
	}
	h.observe(view)
	page.View = view

	query := url.Values{}
	switch name {
	case present.ViewCountries, present.ViewRegions:
		allowed := engine.SnapshotMetrics
		if name == present.ViewRegions {
			allowed = regionMetrics
		}
		current := metricOf(view)
		for _, m := range allowed {
			page.Metrics = append(page.Metrics, choice{Value: string(m), Selected: string(m) == current})
		}
		query.Set("metric", current)
	case present.ViewStates:
		selected := make(map[string]bool)
		for _, s := range selectedStates(c, ds.Counties) {
			selected[s] = true
		}
		// Keep the blank marker so an empty selection stays empty on reload.
		query.Add("state", "")
		for _, s := range ds.Counties.States() {
			page.States = append(page.States, choice{Value: s, Selected: selected[s]})
			if selected[s] {
				query.Add("state", s)
			}
		}
	}
	page.ChartURL = "/api/views/" + name + "/chart.png"
	if len(query) > 0 {
		page.ChartURL += "?" + query.Encode()
	}

	return c.Render(http.StatusOK, "dashboard.html", page)
}

func metricOf(view models.View) string {
	if len(view.Chart.Series) == 0 {
		return string(engine.Confirmed)
	}
	return view.Chart.Series[0].Name
}
