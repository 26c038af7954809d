package store

import (
	"fmt"
	"sort"
	"time"

	"caratdash/api/models"
)

// DirectLabel names touchpoints that arrived without a media.
const DirectLabel = "Direct"

// MediaLabels maps media ids to display names.
type MediaLabels map[uint32]string

func (m MediaLabels) label(tp models.Touchpoint) string {
	name, ok := m[tp.MediaID]
	if !ok {
		name = tp.MediaLabel
	}
	if name == "" {
		return DirectLabel
	}
	return name
}

// Reconstruct extracts the attribution segment of the user's latest
// conversion at or before asOf.
//
// The segment starts right after the second-to-last conversion (or at the
// first touchpoint when there is only one) and ends with the last
// conversion, inclusive. Touchpoints already credited to an earlier
// conversion never leak into a later segment.
func Reconstruct(userID uint64, touchpoints []models.Touchpoint, asOf time.Time, labels MediaLabels) (models.AttributionSegment, error) {
	timeline := make([]models.Touchpoint, 0, len(touchpoints))
	for _, tp := range touchpoints {
		if !tp.Timestamp.After(asOf) {
			timeline = append(timeline, tp)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})

	var conversions []int
	for i, tp := range timeline {
		if tp.IsConversion {
			conversions = append(conversions, i)
		}
	}
	if len(conversions) == 0 {
		return models.AttributionSegment{}, models.NewError(models.KindNoConversion, "reconstruct",
			fmt.Errorf("user %d has no conversion at or before %s", userID, asOf.Format(time.RFC3339)))
	}

	start := 0
	if len(conversions) > 1 {
		start = conversions[len(conversions)-2] + 1
	}
	end := conversions[len(conversions)-1]

	window := timeline[start : end+1]
	seg := models.AttributionSegment{
		UserID:    userID,
		Referrals: make([]string, 0, len(window)),
		Dates:     make([]time.Time, 0, len(window)),
	}
	for _, tp := range window {
		seg.Referrals = append(seg.Referrals, labels.label(tp))
		seg.Dates = append(seg.Dates, tp.Timestamp)
		if tp.IsConversion {
			seg.ConversionDate = tp.Timestamp
			seg.Product = productName(tp.ConversionPayload)
		}
	}
	return seg, nil
}

func productName(p *string) string {
	if p == nil || *p == "undefined" {
		return ""
	}
	return *p
}
