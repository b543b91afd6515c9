package models

// LeagueParams are the rating-scale constants of a league
type LeagueParams struct {
	MeanRating         float64 `json:"mean_rating" yaml:"mean_rating"`
	HomeFieldAdvantage float64 `json:"home_field_advantage" yaml:"home_field_advantage"`
	AveragePoints      float64 `json:"average_points" yaml:"average_points"` // per team per game
	MarginStdDev       float64 `json:"margin_std_dev" yaml:"margin_std_dev"`
}
