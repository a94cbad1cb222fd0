package models

// Chart types and labels understood by the front-end charting widget.
const (
	ChartTypeBar              = "bar"
	ChartDatasetSubscriptions = "Subscriptions"
)

// Chart is a chart descriptor ready to be handed to the UI.
type Chart struct {
	Type string    `json:"type"`
	Data ChartData `json:"data"`
}

// ChartData holds the labels and the series plotted against them.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one named series; Data[i] belongs to ChartData.Labels[i].
type ChartDataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// NewBarChart builds a single-series bar chart. Nil slices are replaced with empty ones.
func NewBarChart(series string, labels []string, values []int) Chart {
	if labels == nil {
		labels = []string{}
	}
	if values == nil {
		values = []int{}
	}
	return Chart{
		Type: ChartTypeBar,
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{
				{Label: series, Data: values},
			},
		},
	}
}
