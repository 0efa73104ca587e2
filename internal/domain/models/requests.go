package models

// Requests for zone HTTP endpoints.

type DetectZonesRequest struct {
	Ticker    string `param:"ticker" json:"ticker" validate:"required,ticker"`
	TimeFrame string `query:"timeFrame" json:"timeFrame" default:"1d" validate:"oneof=1d 1wk 1mo"`
}

type ScanDayRequest struct {
	TimeFrame  string   `json:"timeFrame" default:"1d" validate:"oneof=1d 1wk 1mo"`
	Tickers    []string `json:"tickers" validate:"omitempty,max=1000,dive,ticker"`
	TargetDate string   `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`
}

type ListZonesRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"omitempty,ticker"`
	TimeFrame string `query:"timeFrame" json:"timeFrame" default:"1d" validate:"oneof=1d 1wk 1mo"`
	From      string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}
