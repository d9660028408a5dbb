package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aarondl/null/v8"
	"gonum.org/v1/gonum/stat"

	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

// Risk factor names surfaced in assessments.
const (
	FactorNoShowRate       = "historical_no_show_rate"
	FactorRescheduleRate   = "historical_reschedule_rate"
	FactorReliability      = "reliability_deficit"
	FactorChurn            = "churn_probability"
	FactorProximity        = "session_proximity"
	FactorReliabilityTrend = "reliability_trend"
)

// ProximityHorizon is how far ahead of a session proximity starts to count.
const ProximityHorizon = 48 * time.Hour

// decliningTrendFloor is the trend signal for any declining reliability
// series; steeper declines raise it towards 1.
const decliningTrendFloor = 0.5

// RiskThresholds are the score cut-offs for medium and high risk.
type RiskThresholds struct {
	Medium float64
	High   float64
}

// RiskScorer combines weighted reliability signals into explainable scores.
type RiskScorer struct {
	Weights              config.RiskWeights
	Thresholds           RiskThresholds
	TrendTolerance       float64
	NoShowSaturation     float64
	RescheduleSaturation float64
}

// NewRiskScorer builds a scorer from the configured thresholds.
func NewRiskScorer(th config.Thresholds) RiskScorer {
	return RiskScorer{
		Weights:              th.RiskWeights,
		Thresholds:           RiskThresholds{Medium: th.RiskMedium, High: th.RiskHigh},
		TrendTolerance:       th.TrendStableTolerance,
		NoShowSaturation:     th.NoShowSaturation,
		RescheduleSaturation: th.RescheduleSaturation,
	}
}

// Level buckets a score: above High is high, at or above Medium is medium.
func (s RiskScorer) Level(score float64) models.RiskLevel {
	switch {
	case score > s.Thresholds.High:
		return models.RiskHigh
	case score >= s.Thresholds.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// NoShowRisk scores a tutor's risk of missing an upcoming session as a
// weighted sum of signals in [0,1]. No-show and reschedule rates saturate at
// their configured rates. A declining reliability trend is its own weighted
// signal. When upcoming is nil the proximity signal is left out. Signals that
// are absent from the history do not count as zero; the remaining weights are
// renormalised so the score stays within [0,1].
func (s RiskScorer) NoShowRisk(history models.TutorHistory, upcoming *models.UpcomingSession, now time.Time) models.RiskAssessment {
	assessment := models.RiskAssessment{
		TutorID:     history.TutorID,
		SubjectID:   history.TutorID,
		EvaluatedAt: now,
	}

	var factors []models.RiskFactor
	add := func(name string, weight, value float64, explanation string) {
		value = clamp(value, 0, 1)
		factors = append(factors, models.RiskFactor{
			Factor:      name,
			Weight:      weight,
			Value:       value,
			Explanation: explanation,
		})
	}

	if history.SessionsObserved > 0 {
		add(FactorNoShowRate, s.Weights.NoShowRate, saturate(history.NoShowRate, s.NoShowSaturation),
			fmt.Sprintf("missed %.1f%% of %d recent sessions", history.NoShowRate*100, history.SessionsObserved))
		add(FactorRescheduleRate, s.Weights.Reschedule, saturate(history.RescheduleRate, s.RescheduleSaturation),
			fmt.Sprintf("rescheduled %.1f%% of %d recent sessions", history.RescheduleRate*100, history.SessionsObserved))
	}

	trend := AnalyzeTrend(history.ReliabilitySeries, s.TrendTolerance)
	reliability := history.ReliabilityScore
	if !reliability.Valid && len(history.ReliabilitySeries) > 0 {
		reliability.Float64 = history.ReliabilitySeries[len(history.ReliabilitySeries)-1].Value
		reliability.Valid = true
	}
	if reliability.Valid {
		add(FactorReliability, s.Weights.Reliability, 1-reliability.Float64,
			fmt.Sprintf("reliability score of %.0f%%", clamp(reliability.Float64, 0, 1)*100))
	}

	if len(history.ReliabilitySeries) >= 2 {
		value := 0.0
		if trend.Direction == models.TrendDown {
			value = clamp(decliningTrendFloor+math.Abs(trend.ChangePercent)/100, decliningTrendFloor, 1)
		}
		add(FactorReliabilityTrend, s.Weights.Trend, value, "reliability is "+trend.Summary)
	}

	if history.ChurnProbability.Valid {
		add(FactorChurn, s.Weights.Churn, history.ChurnProbability.Float64,
			fmt.Sprintf("%.0f%% modelled churn probability", history.ChurnProbability.Float64*100))
	}

	if upcoming != nil {
		hours := upcoming.ScheduledStart.Sub(now).Hours()
		proximity := 1 - hours/ProximityHorizon.Hours()
		add(FactorProximity, s.Weights.Proximity, proximity,
			fmt.Sprintf("session starts in %.1f hours", math.Max(hours, 0)))
	}

	totalWeight := 0.0
	for _, f := range factors {
		totalWeight += f.Weight
	}
	score := 0.0
	if totalWeight > 0 {
		for i := range factors {
			factors[i].Contribution = factors[i].Weight * factors[i].Value / totalWeight
			score += factors[i].Contribution
		}
	}

	assessment.RiskScore = clamp(score, 0, 1)
	assessment.RiskLevel = s.Level(assessment.RiskScore)
	assessment.RiskFactors = factors
	assessment.MitigationText = Mitigation(assessment.RiskLevel)
	return assessment
}

// saturate maps a rate onto [0,1], reaching 1 at the saturation rate. A
// non-positive saturation leaves the rate unscaled.
func saturate(rate, saturation float64) float64 {
	if saturation <= 0 {
		return rate
	}
	return rate / saturation
}

// Mitigation returns the recommended follow-up for a risk level.
func Mitigation(level models.RiskLevel) string {
	switch level {
	case models.RiskHigh:
		return "Send reminder 24h and 1h before session. Follow up if no confirmation."
	case models.RiskMedium:
		return "Send reminder 24h before session and verify availability."
	default:
		return "Monitor session attendance."
	}
}

// HistoryFromSessions derives no-show and reschedule rates from past sessions.
func HistoryFromSessions(tutorID string, sessions []models.Session, agg *models.TutorAggregate) models.TutorHistory {
	h := models.TutorHistory{TutorID: tutorID, SessionsObserved: len(sessions)}
	var noShows, reschedules int
	for _, sess := range sessions {
		if sess.IsNoShow() {
			noShows++
		}
		if sess.IsReschedule() {
			reschedules++
		}
	}
	if len(sessions) > 0 {
		h.NoShowRate = float64(noShows) / float64(len(sessions))
		h.RescheduleRate = float64(reschedules) / float64(len(sessions))
	}
	h.ReliabilitySeries = ReliabilitySeries(sessions)
	if agg != nil {
		h.ReliabilityScore = agg.ReliabilityScore
		h.ChurnProbability = agg.ChurnProbability
	}
	return h
}

// ReliabilitySeries returns the weekly completion rate of the given sessions.
func ReliabilitySeries(sessions []models.Session) []models.MetricPoint {
	obs := make([]models.Observation, 0, len(sessions))
	for _, sess := range sessions {
		v := 0.0
		if sess.Completed {
			v = 1
		}
		obs = append(obs, models.Observation{Timestamp: sess.ScheduledStart, Value: null.Float64From(v)})
	}
	return WeeklyTrend(obs, models.GranularityWeek)
}

// SortHighRisk orders sessions high before medium before low, then soonest first.
func SortHighRisk(sessions []models.HighRiskSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		ri, rj := sessions[i].Assessment.RiskLevel.Rank(), sessions[j].Assessment.RiskLevel.Rank()
		if ri != rj {
			return ri > rj
		}
		return sessions[i].Session.ScheduledStart.Before(sessions[j].Session.ScheduledStart)
	})
}

// TimeOfDayBucket maps an hour to morning, afternoon, evening or night.
func TimeOfDayBucket(hour int) (string, int) {
	switch {
	case hour >= 6 && hour < 12:
		return "morning", 0
	case hour >= 12 && hour < 18:
		return "afternoon", 1
	case hour >= 18:
		return "evening", 2
	default:
		return "night", 3
	}
}

var timeOfDayLabels = [...]string{"morning", "afternoon", "evening", "night"}

// ReliabilityInput is the data reliability analysis runs over.
type ReliabilityInput struct {
	Sessions   []models.Session
	Aggregates map[string]models.TutorAggregate
	Threshold  float64
	Now        time.Time
}

// ReliabilityAnalysis aggregates reschedule behaviour by time of day and
// weekday and flags tutors whose reschedule rate exceeds the threshold or
// whose no-show risk is high.
func (s RiskScorer) ReliabilityAnalysis(in ReliabilityInput) models.ReliabilityAnalysis {
	result := models.ReliabilityAnalysis{
		Threshold:      in.Threshold,
		GeneratedAt:    in.Now,
		HighRiskTutors: []models.ReliabilityRiskTutor{},
	}

	var tod [4]models.ReschedulePattern
	for i, label := range timeOfDayLabels {
		tod[i] = models.ReschedulePattern{Bucket: label, Index: i}
	}
	var dow [7]models.ReschedulePattern
	for i, label := range weekdayLabels {
		dow[i] = models.ReschedulePattern{Bucket: label, Index: i}
	}

	byTutor := make(map[string][]models.Session)
	for _, sess := range in.Sessions {
		byTutor[sess.TutorID] = append(byTutor[sess.TutorID], sess)
		ts := sess.ScheduledStart.UTC()
		_, ti := TimeOfDayBucket(ts.Hour())
		di := int(ts.Weekday())
		tod[ti].Sessions++
		dow[di].Sessions++
		if sess.IsReschedule() {
			tod[ti].Reschedules++
			dow[di].Reschedules++
		}
	}
	result.ByTimeOfDay = finishPatterns(tod[:])
	result.ByDayOfWeek = finishPatterns(dow[:])
	result.Overall.SessionsAnalyzed = len(in.Sessions)

	tutorIDs := make([]string, 0, len(byTutor))
	for id := range byTutor {
		tutorIDs = append(tutorIDs, id)
	}
	sort.Strings(tutorIDs)

	var sumReschedule, sumNoShow float64
	for _, id := range tutorIDs {
		sessions := byTutor[id]
		var aggPtr *models.TutorAggregate
		name := id
		if agg, ok := in.Aggregates[id]; ok {
			aggPtr = &agg
			name = agg.TutorName
		}
		history := HistoryFromSessions(id, sessions, aggPtr)
		sumReschedule += history.RescheduleRate
		sumNoShow += history.NoShowRate

		risk := s.NoShowRisk(history, nil, in.Now)
		above := history.RescheduleRate > in.Threshold
		if above {
			result.Overall.TutorsAboveThreshold++
		}
		if !above && risk.RiskLevel != models.RiskHigh {
			continue
		}

		combined := (history.RescheduleRate + history.NoShowRate) / 2
		urgency := models.UrgencyNormal
		if combined > 2*in.Threshold || risk.RiskLevel == models.RiskHigh {
			urgency = models.UrgencyCritical
		}
		result.HighRiskTutors = append(result.HighRiskTutors, models.ReliabilityRiskTutor{
			TutorID:         id,
			TutorName:       name,
			RescheduleRate:  history.RescheduleRate,
			NoShowRate:      history.NoShowRate,
			CombinedRate:    combined,
			RiskScore:       risk.RiskScore,
			RiskLevel:       risk.RiskLevel,
			Urgency:         urgency,
			Recommendations: tutorReliabilityRecommendations(sessions, history, in.Threshold),
		})
	}

	result.Overall.TotalTutorsAnalyzed = len(tutorIDs)
	if len(tutorIDs) > 0 {
		result.Overall.AvgRescheduleRate = sumReschedule / float64(len(tutorIDs))
		result.Overall.AvgNoShowRate = sumNoShow / float64(len(tutorIDs))
	}

	sort.SliceStable(result.HighRiskTutors, func(i, j int) bool {
		a, b := result.HighRiskTutors[i], result.HighRiskTutors[j]
		if a.Urgency != b.Urgency {
			return a.Urgency == models.UrgencyCritical
		}
		return a.CombinedRate > b.CombinedRate
	})
	return result
}

func finishPatterns(patterns []models.ReschedulePattern) []models.ReschedulePattern {
	out := make([]models.ReschedulePattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Sessions > 0 {
			p.RescheduleRate = float64(p.Reschedules) / float64(p.Sessions)
		}
		out = append(out, p)
	}
	return out
}

func tutorReliabilityRecommendations(sessions []models.Session, history models.TutorHistory, threshold float64) []string {
	recs := make([]string, 0, 4)
	if history.RescheduleRate > threshold {
		recs = append(recs, fmt.Sprintf("High reschedule rate detected (%.1f%%): investigate root causes", history.RescheduleRate*100))
	}

	if len(sessions) > 1 {
		rescheduled := make([]float64, len(sessions))
		technical := make([]float64, len(sessions))
		for i, sess := range sessions {
			if sess.IsReschedule() {
				rescheduled[i] = 1
			}
			if sess.HadTechnicalIssues {
				technical[i] = 1
			}
		}
		if corr := stat.Correlation(rescheduled, technical, nil); !math.IsNaN(corr) && corr > 0.5 {
			recs = append(recs, "Technical issues strongly correlated with reschedules: provide technical support")
		}
	}

	var tod [4]models.ReschedulePattern
	for _, sess := range sessions {
		_, idx := TimeOfDayBucket(sess.ScheduledStart.UTC().Hour())
		tod[idx].Sessions++
		if sess.IsReschedule() {
			tod[idx].Reschedules++
		}
	}
	peak, peakRate := -1, 0.0
	for i, p := range tod {
		if p.Sessions == 0 {
			continue
		}
		if rate := float64(p.Reschedules) / float64(p.Sessions); rate > peakRate {
			peak, peakRate = i, rate
		}
	}
	if peak >= 0 && peakRate > 0.2 {
		recs = append(recs, fmt.Sprintf("Reschedules peak during %s: consider scheduling adjustments", timeOfDayLabels[peak]))
	}

	if history.NoShowRate > 0.1 {
		recs = append(recs, "Send reminders 24h and 1h before each session")
	}
	return recs
}
