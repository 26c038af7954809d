package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the minute-resolution layout used for journey dates.
const DateLayout = "2006-01-02 15:04"

// Paging carries the table widget's draw counter and the requested window.
type Paging struct {
	Draw   int
	Start  int
	Length int
}

// AggregationPage is one page of a ranked aggregation. Total comes from a
// distinct-count query over the same filter and is independent of paging.
type AggregationPage[T any] struct {
	Total uint64
	Rows  []T
}

// TableEnvelope is the response shape for paginated tabular reports.
// RecordsFiltered always equals RecordsTotal.
type TableEnvelope[T any] struct {
	Draw            int    `json:"draw"`
	RecordsTotal    uint64 `json:"recordsTotal"`
	RecordsFiltered uint64 `json:"recordsFiltered"`
	Data            []T    `json:"data"`
}

func NewTableEnvelope[T any](draw int, page AggregationPage[T]) TableEnvelope[T] {
	data := page.Rows
	if data == nil {
		data = []T{}
	}
	return TableEnvelope[T]{
		Draw:            draw,
		RecordsTotal:    page.Total,
		RecordsFiltered: page.Total,
		Data:            data,
	}
}

// DataEnvelope wraps unpaginated report payloads.
type DataEnvelope[T any] struct {
	Data T `json:"data"`
}

// Touchpoint is one session of a user's journey.
type Touchpoint struct {
	UserID            uint64
	Timestamp         time.Time
	MediaID           uint32
	MediaLabel        string
	IsConversion      bool
	ConversionPayload *string
}

// AttributionSegment is the slice of a user's journey credited to the
// user's latest conversion.
type AttributionSegment struct {
	UserID         uint64
	Referrals      []string
	Dates          []time.Time
	ConversionDate time.Time
	Product        string
}

func (s AttributionSegment) MarshalJSON() ([]byte, error) {
	dates := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		dates[i] = d.Format(DateLayout)
	}
	return json.Marshal(struct {
		UID            uint64   `json:"uid"`
		Referrals      []string `json:"referrals"`
		Dates          []string `json:"dates"`
		ConversionDate string   `json:"conversionDate"`
		Product        string   `json:"product"`
	}{
		UID:            s.UserID,
		Referrals:      s.Referrals,
		Dates:          dates,
		ConversionDate: s.ConversionDate.Format(DateLayout),
		Product:        s.Product,
	})
}

// Anchor is a converted session that selects a user for reconstruction.
// Cutoff bounds the touchpoints read for that user.
type Anchor struct {
	UserID uint64
	Cutoff time.Time
}

// TransitionEdge is a weighted page-to-page transition.
type TransitionEdge struct {
	From   uint64 `json:"source"`
	To     uint64 `json:"target"`
	Weight uint64 `json:"value"`
}

type Node struct {
	ID    uint64 `json:"node"`
	Label string `json:"name"`
}

// NavigationGraph holds the selected edges in rank order and exactly the
// nodes they reference, ascending by id.
type NavigationGraph struct {
	Nodes []Node           `json:"nodes"`
	Edges []TransitionEdge `json:"edges"`
}

type MediaRow struct {
	Media             string  `json:"media"`
	UniqueVisitors    uint64  `json:"uniqueVisitors"`
	ReturningVisitors uint64  `json:"returningVisitors"`
	Sessions          uint64  `json:"sessions"`
	Bounces           uint64  `json:"bounces"`
	AveragePageviews  float64 `json:"averagePageviews"`
	AverageTime       float64 `json:"averageTime"`
	Specs             uint64  `json:"specs"`
	Bookings          uint64  `json:"bookings"`
	SessionSpecs      uint64  `json:"-"`
	NewVisitors       int64   `json:"newVisitors"`
	NewRate           float64 `json:"newRate"`
	BounceRate        float64 `json:"bounceRate"`
	SpecRate          float64 `json:"specRate"`
}

type ExitPageRow struct {
	NodeID         uint64  `json:"-"`
	LandingPage    string  `json:"landingPage"`
	Exits          uint64  `json:"exits"`
	Sessions       uint64  `json:"sessions"`
	TotalVisitors  uint64  `json:"totalVisitors"`
	UniqueVisitors uint64  `json:"uniqueVisitors"`
	AverageTime    float64 `json:"averageTime"`
	ExitRate       float64 `json:"exitRate"`
}

type BrowserRow struct {
	Browser     string  `json:"browser"`
	Visitors    uint64  `json:"-"`
	AverageTime float64 `json:"averageTime"`
	Rate        float64 `json:"rate"`
}

type AdwordsComparisonRow struct {
	Source           string  `json:"source"`
	Group            string  `json:"group"`
	UniqueVisitors   uint64  `json:"uniqueVisitors"`
	Sessions         uint64  `json:"sessions"`
	Pageviews        uint64  `json:"pageviews"`
	AveragePageviews float64 `json:"averagePageviews"`
	AverageTime      float64 `json:"averageTime"`
	Conversions      uint64  `json:"conversions"`
}

type AdwordsBookingRow struct {
	Group       string  `json:"group"`
	AverageTime float64 `json:"averageTime"`
	Conversions uint64  `json:"conversions"`
}
