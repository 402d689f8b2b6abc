package results

import (
	"math"
	"slices"

	"reward-polls/modules/common"
)

type OptionStat struct {
	Option     string  `json:"option"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type QuestionStats struct {
	Type    common.QuestionType `json:"type"`
	Options []OptionStat        `json:"options"`
}

type Statistics struct {
	PollId       string          `json:"pollId"`
	TotalRecords int             `json:"totalRecords"`
	Questions    []QuestionStats `json:"questions"`
}

// ComputeStatistics counts, per question, how many records chose each
// option. Percentages are relative to the number of records, so Multiple
// questions may add up to more than 100. Values that are not options of the
// question are ignored.
func ComputeStatistics(poll common.Poll, records []common.ParticipationRecord) Statistics {
	stats := Statistics{
		PollId:       poll.Id,
		TotalRecords: len(records),
		Questions:    make([]QuestionStats, len(poll.Questions)),
	}

	for qi, q := range poll.Questions {
		counts := make([]int, len(q.Options))
		for _, record := range records {
			if qi >= len(record.Answers) {
				continue
			}
			for _, value := range record.Answers[qi].Values {
				if oi := slices.Index(q.Options, value); oi >= 0 {
					counts[oi]++
				}
			}
		}

		options := make([]OptionStat, len(q.Options))
		for oi, option := range q.Options {
			options[oi] = OptionStat{
				Option:     option,
				Count:      counts[oi],
				Percentage: percentage(counts[oi], len(records)),
			}
		}
		stats.Questions[qi] = QuestionStats{Type: q.Type, Options: options}
	}
	return stats
}

// percentage rounds half away from zero to one decimal. Zero records give 0.
func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}
