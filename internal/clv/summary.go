package clv

import (
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Summarize aggregates records. window bounds the rolling CLV average to the
// most recent closed records; biasMinSamples is the number of closed spread
// records a league needs before a bias correction is suggested.
func Summarize(records []models.CLVRecord, window, biasMinSamples int) models.CLVSummary {
	summary := models.CLVSummary{
		Records:       len(records),
		RollingWindow: window,
		TotalStaked:   decimal.Zero,
		ProfitLoss:    decimal.Zero,
	}

	var clvs []float64
	positive := 0
	gradedStake := decimal.Zero
	misses := make(map[string][]float64)

	for _, r := range records {
		summary.TotalStaked = summary.TotalStaked.Add(r.Stake)

		if r.IsClosed() {
			summary.Closed++
			clvs = append(clvs, *r.CLV)
			if *r.CLV > 0 {
				positive++
			}
			if r.MarketType == models.MarketSpread && r.ModelLine != nil && r.ClosingHome != nil {
				misses[r.League] = append(misses[r.League], *r.ModelLine-*r.ClosingHome)
			}
		}

		if r.IsGraded() {
			summary.Graded++
			gradedStake = gradedStake.Add(r.Stake)
			if r.ProfitLoss != nil {
				summary.ProfitLoss = summary.ProfitLoss.Add(*r.ProfitLoss)
			}
			switch *r.Result {
			case models.OutcomeWin:
				summary.Wins++
			case models.OutcomeLoss:
				summary.Losses++
			case models.OutcomePush:
				summary.Pushes++
			}
		}
	}

	if decided := summary.Wins + summary.Losses; decided > 0 {
		summary.WinRate = float64(summary.Wins) / float64(decided)
	}
	if gradedStake.IsPositive() {
		summary.ROI = summary.ProfitLoss.Div(gradedStake).InexactFloat64()
	}

	if len(clvs) > 0 {
		summary.AverageCLV = stat.Mean(clvs, nil)
		summary.PositiveCLVRate = float64(positive) / float64(len(clvs))

		recent := clvs
		if window > 0 && len(recent) > window {
			recent = recent[len(recent)-window:]
		}
		summary.RollingCLV = stat.Mean(recent, nil)
	}
	if len(clvs) > 1 {
		summary.CLVStdDev = stat.StdDev(clvs, nil)
	}

	for league, diffs := range misses {
		if len(diffs) < biasMinSamples {
			continue
		}
		if summary.SuggestedBias == nil {
			summary.SuggestedBias = make(map[string]float64)
		}
		summary.SuggestedBias[league] = stat.Mean(diffs, nil)
	}

	return summary
}

// Summary aggregates the tracker's ledger
func (t *Tracker) Summary(window, biasMinSamples int) models.CLVSummary {
	return Summarize(t.Records(), window, biasMinSamples)
}
