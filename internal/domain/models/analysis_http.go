package models

// Requests for the analysis HTTP endpoints. Zero values fall back to the
// configured trading defaults.

type AnalysisRequest struct {
	Capital float64 `query:"capital" json:"capital" validate:"omitempty,gt=0"`
	Sigma   float64 `query:"sigma" json:"sigma" validate:"omitempty,gt=0"`
}

type EventsRequest struct {
	Date string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type BarsRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Interval string `query:"interval" json:"interval" default:"1m" validate:"oneof=1m 1d"`
	Limit    int    `query:"limit" json:"limit" default:"390" validate:"gt=0,lte=10000"`
}
