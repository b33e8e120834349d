// Package templatetags holds the template helpers host pages use to embed
// dash widgets.
package templatetags

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/google/uuid"

	"tomdash/internal/auth"
	"tomdash/internal/dash"
	"tomdash/internal/plots"
	"tomdash/pkg/models"
)

var ErrNoUser = errors.New("request has no authenticated user")

//go:embed partials/*.html
var partials embed.FS

var partialTemplates = template.Must(template.ParseFS(partials, "partials/*.html"))

// RequestContext is what a host page knows about the current request.
type RequestContext struct {
	User *auth.User
}

// Inclusion is the result of a template helper: the app to mount and the
// initial values for its hidden components.
type Inclusion struct {
	App         string
	DashContext dash.InitialArguments
}

// DashTargetDistribution prepares the target distribution widget for the
// given, already scoped targets. It reads only the ids of targets.
func DashTargetDistribution(rc RequestContext, targets []models.Target) (Inclusion, error) {
	if rc.User == nil {
		return Inclusion{}, ErrNoUser
	}

	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}

	return Inclusion{
		App: plots.TargetDistributionApp,
		DashContext: dash.InitialArguments{
			plots.UsernameID: {"value": rc.User.Username},
			plots.FilterID:   {"data": ids},
		},
	}, nil
}

// Library renders inclusions against a registry of apps.
type Library struct {
	Registry *dash.Registry
	// BasePath is where dash.Handler is mounted, e.g. "/dash/app".
	BasePath string
	PlotlyJS string
}

type partialData struct {
	MountID       string
	App           string
	Username      string
	Filter        any
	InitialLayout any
	PlotlyJS      string
	UpdateURL     string
	LiveURL       string
	Output        string
	GraphID       string
	UsernameID    string
	FilterID      string
}

// Render writes the HTML partial that mounts inc.
func (l *Library) Render(w io.Writer, inc Inclusion) error {
	reg := l.Registry
	if reg == nil {
		reg = dash.Default()
	}
	app, err := reg.Lookup(inc.App)
	if err != nil {
		return err
	}

	layout := app.InitialLayout(inc.DashContext)
	graph, _ := layout.Find(plots.GraphID)
	user, _ := layout.Find(plots.UsernameID)
	store, _ := layout.Find(plots.FilterID)

	username, _ := user.Props["value"].(string)
	var initialLayout any = plots.TargetDistributionLayout()
	if fig, ok := graph.Props["figure"].(plots.Figure); ok {
		initialLayout = fig.Layout
	}

	data := partialData{
		MountID:       "dash-" + strings.ToLower(app.Name) + "-" + uuid.NewString()[:8],
		App:           app.Name,
		Username:      username,
		Filter:        store.Props["data"],
		InitialLayout: initialLayout,
		PlotlyJS:      l.PlotlyJS,
		UpdateURL:     strings.TrimSuffix(l.BasePath, "/") + "/" + app.Name + "/_dash-update-component",
		LiveURL:       strings.TrimSuffix(l.BasePath, "/") + "/" + app.Name + "/ws",
		Output:        dash.Output(plots.GraphID, "figure").String(),
		GraphID:       plots.GraphID,
		UsernameID:    plots.UsernameID,
		FilterID:      plots.FilterID,
	}
	if err := partialTemplates.ExecuteTemplate(w, "target_distribution.html", data); err != nil {
		return fmt.Errorf("render %s: %w", app.Name, err)
	}
	return nil
}

// FuncMap exposes the helpers to host templates:
//
//	{{ dash_target_distribution .Request .Targets }}
func (l *Library) FuncMap() template.FuncMap {
	return template.FuncMap{
		"dash_target_distribution": func(rc RequestContext, targets []models.Target) (template.HTML, error) {
			inc, err := DashTargetDistribution(rc, targets)
			if err != nil {
				return "", err
			}
			var buf bytes.Buffer
			if err := l.Render(&buf, inc); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil
		},
	}
}
