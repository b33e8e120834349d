package plots

import (
	"context"
	"fmt"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"tomdash/internal/auth"
	"tomdash/internal/dash"
	"tomdash/internal/permissions"
	"tomdash/pkg/models"
)

const (
	TargetDistributionApp = "TargetDistributionView"

	GraphID    = "target-distribution"
	UsernameID = "username"
	FilterID   = "target-filter"
)

// ErrForbidden is returned when the authenticated viewer asks for another
// user's plot.
var ErrForbidden = fmt.Errorf("plot for another user: %w", dash.ErrForbidden)

type UserLookup interface {
	LookupUsername(ctx context.Context, username string) (*auth.User, error)
}

type Viewer interface {
	ViewableTargets(ctx context.Context, u *auth.User) (permissions.IDSet, error)
}

type LocationSource interface {
	Locations(ctx context.Context, ids []int64, typ models.TargetType) ([]models.Location, error)
}

// TargetDistribution builds the sidereal sky map for a user.
type TargetDistribution struct {
	Users   UserLookup
	Perms   Viewer
	Targets LocationSource
	Log     *zap.Logger
}

// labels strips markup from target names; plotly renders text as HTML.
var labels = bluemonday.StrictPolicy()

// Plot returns the figure for the sidereal targets in filter that username
// may view. Ids in filter outside the user's viewable set are dropped.
func (td *TargetDistribution) Plot(ctx context.Context, username string, filter []int64) (Figure, error) {
	if viewer, ok := auth.ViewerFrom(ctx); ok && viewer != username {
		return Figure{}, ErrForbidden
	}

	u, err := td.Users.LookupUsername(ctx, username)
	if err != nil {
		return Figure{}, err
	}

	allowed, err := td.Perms.ViewableTargets(ctx, u)
	if err != nil {
		return Figure{}, fmt.Errorf("viewable targets for %s: %w", username, err)
	}

	ids := make([]int64, 0, len(filter))
	seen := make(map[int64]struct{}, len(filter))
	for _, id := range filter {
		if _, dup := seen[id]; dup || !allowed.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	locations, err := td.Targets.Locations(ctx, ids, models.TargetSidereal)
	if err != nil {
		return Figure{}, fmt.Errorf("target locations: %w", err)
	}

	if td.Log != nil {
		td.Log.Debug("target distribution plotted",
			zap.String("user", username),
			zap.Int("requested", len(filter)),
			zap.Int("plotted", len(locations)),
		)
	}
	return TargetDistributionFigure(locations), nil
}

// TargetDistributionFigure lays out the given locations on the mollweide
// sky map together with the grid labels.
func TargetDistributionFigure(locations []models.Location) Figure {
	points := Trace{
		Type:      "scattergeo",
		Mode:      "markers",
		Lon:       make([]float64, 0, len(locations)),
		Lat:       make([]float64, 0, len(locations)),
		Text:      make([]string, 0, len(locations)),
		HoverInfo: "lon+lat+text",
	}
	for _, loc := range locations {
		points.Lon = append(points.Lon, loc.RA)
		points.Lat = append(points.Lat, loc.Dec)
		points.Text = append(points.Text, labels.Sanitize(loc.Name))
	}

	return Figure{
		Data:   []Trace{points, GridLabels()},
		Layout: TargetDistributionLayout(),
	}
}

// GridLabels marks longitudes every 60 degrees along the equator and
// latitudes every 30 degrees along the 180 meridian.
func GridLabels() Trace {
	t := Trace{
		Type:      "scattergeo",
		Mode:      "text",
		HoverInfo: "none",
	}
	for lon := 0; lon < 360; lon += 60 {
		t.Lon = append(t.Lon, float64(lon))
		t.Lat = append(t.Lat, 0)
		t.Text = append(t.Text, strconv.Itoa(lon))
	}
	for _, lat := range []int{-60, -30, 30, 60} {
		t.Lon = append(t.Lon, 180)
		t.Lat = append(t.Lat, float64(lat))
		t.Text = append(t.Text, strconv.Itoa(lat))
	}
	return t
}

func TargetDistributionLayout() Layout {
	return Layout{
		Title:      "Target Distribution (sidereal)",
		HoverMode:  "closest",
		ShowLegend: false,
		Geo: Geo{
			Projection:     Projection{Type: "mollweide"},
			ShowCoastlines: false,
			ShowLand:       false,
			LonAxis:        Axis{ShowGrid: true, Range: [2]float64{0, 360}},
			LatAxis:        Axis{ShowGrid: true, Range: [2]float64{-90, 90}},
		},
	}
}

// NewTargetDistributionApp wires td into a widget: a graph, a hidden
// username input and a hidden store of target ids. The graph is redrawn
// whenever the username changes.
func NewTargetDistributionApp(td *TargetDistribution) *dash.App {
	app := dash.NewApp(TargetDistributionApp, dash.Div(
		dash.Graph(GraphID, Figure{Data: []Trace{}, Layout: TargetDistributionLayout()}),
		dash.HiddenInput(UsernameID, ""),
		dash.Store(FilterID, []int64{}),
	))

	app.Callback(
		dash.Output(GraphID, "figure"),
		[]dash.Dependency{dash.Input(UsernameID, "value")},
		[]dash.Dependency{dash.State(FilterID, "data")},
		func(ctx context.Context, args dash.Args) (any, error) {
			var (
				username string
				filter   []int64
			)
			if err := args.Get(UsernameID, "value", &username); err != nil {
				return nil, err
			}
			if err := args.Get(FilterID, "data", &filter); err != nil {
				return nil, err
			}
			return td.Plot(ctx, username, filter)
		},
	)
	return app
}

// RegisterTargetDistribution registers the widget in the process-wide
// registry. Call it once at startup.
func RegisterTargetDistribution(td *TargetDistribution) *dash.App {
	app := NewTargetDistributionApp(td)
	dash.Register(app)
	return app
}
