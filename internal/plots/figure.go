package plots

// Figure is a plotly figure: traces plus layout, serialized in plotly's
// JSON shape.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type      string    `json:"type"`
	Mode      string    `json:"mode"`
	Lon       []float64 `json:"lon"`
	Lat       []float64 `json:"lat"`
	Text      []string  `json:"text"`
	HoverInfo string    `json:"hoverinfo"`
}

type Layout struct {
	Title      string `json:"title"`
	HoverMode  string `json:"hovermode"`
	ShowLegend bool   `json:"showlegend"`
	Geo        Geo    `json:"geo"`
}

type Geo struct {
	Projection     Projection `json:"projection"`
	ShowCoastlines bool       `json:"showcoastlines"`
	ShowLand       bool       `json:"showland"`
	LonAxis        Axis       `json:"lonaxis"`
	LatAxis        Axis       `json:"lataxis"`
}

type Projection struct {
	Type string `json:"type"`
}

type Axis struct {
	ShowGrid bool       `json:"showgrid"`
	Range    [2]float64 `json:"range"`
}
