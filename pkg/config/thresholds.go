package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Thresholds centralises every numeric cut-off used by the alert rules,
// risk scoring and statistical helpers. Rates and probabilities are 0-1,
// quality scores are 0-10 and ratings are 0-5.
type Thresholds struct {
	// Alert rule thresholds.
	ChurnHighThreshold          float64 `yaml:"churn_high_threshold"`
	InactiveLoginDays           float64 `yaml:"inactive_login_days"`
	NoSessionsDays              float64 `yaml:"no_sessions_days"`
	EngagementLowThreshold      float64 `yaml:"engagement_low_threshold"`
	SentimentDeclineThreshold   float64 `yaml:"sentiment_decline_threshold"`
	LowRatingThreshold          float64 `yaml:"low_rating_threshold"`
	TechnicalIssueThreshold     float64 `yaml:"technical_issue_threshold"`
	FirstSessionRatingThreshold float64 `yaml:"first_session_rating_threshold"`
	RescheduleRateThreshold     float64 `yaml:"reschedule_rate_threshold"`
	FirstSessionCountThreshold  float64 `yaml:"first_session_count_threshold"`

	// Risk scoring.
	RiskMedium           float64     `yaml:"risk_medium"`
	RiskHigh             float64     `yaml:"risk_high"`
	ReliabilityThreshold float64     `yaml:"reliability_threshold"`
	RiskWeights          RiskWeights `yaml:"risk_weights"`
	// Rates at or above these saturate their signal at 1.
	NoShowSaturation     float64     `yaml:"no_show_saturation"`
	RescheduleSaturation float64     `yaml:"reschedule_saturation"`

	// Statistics.
	AnomalyMultiplier    float64 `yaml:"anomaly_multiplier"`
	AnomalyMinHistory    int     `yaml:"anomaly_min_history"`
	TrendStableTolerance float64 `yaml:"trend_stable_tolerance"`
	SignificanceAlpha    float64 `yaml:"significance_alpha"`
}

// RiskWeights are the no-show signal weights; they must sum to 1.
type RiskWeights struct {
	NoShowRate  float64 `yaml:"no_show_rate"`
	Reschedule  float64 `yaml:"reschedule"`
	Reliability float64 `yaml:"reliability"`
	Trend       float64 `yaml:"trend"`
	Churn       float64 `yaml:"churn"`
	Proximity   float64 `yaml:"proximity"`
}

// Sum returns the total of all weights.
func (w RiskWeights) Sum() float64 {
	return w.NoShowRate + w.Reschedule + w.Reliability + w.Trend + w.Churn + w.Proximity
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChurnHighThreshold:          0.6,
		InactiveLoginDays:           7,
		NoSessionsDays:              14,
		EngagementLowThreshold:      5.5,
		SentimentDeclineThreshold:   -0.5,
		LowRatingThreshold:          3.5,
		TechnicalIssueThreshold:     0.15,
		FirstSessionRatingThreshold: 3.5,
		RescheduleRateThreshold:     0.15,
		FirstSessionCountThreshold:  3,
		RiskMedium:                  0.3,
		RiskHigh:                    0.6,
		ReliabilityThreshold:        0.15,
		RiskWeights: RiskWeights{
			NoShowRate:  0.35,
			Reschedule:  0.20,
			Reliability: 0.10,
			Trend:       0.15,
			Churn:       0.05,
			Proximity:   0.15,
		},
		NoShowSaturation:     0.25,
		RescheduleSaturation: 0.40,
		AnomalyMultiplier:    2.0,
		AnomalyMinHistory:    7,
		TrendStableTolerance: 0.02,
		SignificanceAlpha:    0.05,
	}
}

// MergeFile overlays values present in a YAML document onto t. Keys missing
// from the file keep their current value.
func (t *Thresholds) MergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return fmt.Errorf("parse thresholds file: %w", err)
	}
	return nil
}

// Validate rejects threshold sets that would make scoring inconsistent.
func (t Thresholds) Validate() error {
	if t.RiskMedium <= 0 || t.RiskHigh <= t.RiskMedium || t.RiskHigh > 1 {
		return fmt.Errorf("risk thresholds must satisfy 0 < medium < high <= 1 (got %.2f, %.2f)", t.RiskMedium, t.RiskHigh)
	}
	if sum := t.RiskWeights.Sum(); sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("risk weights must sum to 1 (got %.3f)", sum)
	}
	if t.NoShowSaturation <= 0 || t.NoShowSaturation > 1 || t.RescheduleSaturation <= 0 || t.RescheduleSaturation > 1 {
		return fmt.Errorf("risk saturation rates must be in (0,1]")
	}
	if t.AnomalyMultiplier <= 0 {
		return fmt.Errorf("anomaly multiplier must be positive")
	}
	if t.AnomalyMinHistory < 2 {
		return fmt.Errorf("anomaly min history must be at least 2")
	}
	if t.SignificanceAlpha <= 0 || t.SignificanceAlpha >= 1 {
		return fmt.Errorf("significance alpha must be in (0,1)")
	}
	return nil
}

func setThresholdDefaults(v *viper.Viper) {
	d := DefaultThresholds()
	v.SetDefault("THRESHOLD_CHURN_HIGH", d.ChurnHighThreshold)
	v.SetDefault("THRESHOLD_INACTIVE_LOGIN_DAYS", d.InactiveLoginDays)
	v.SetDefault("THRESHOLD_NO_SESSIONS_DAYS", d.NoSessionsDays)
	v.SetDefault("THRESHOLD_ENGAGEMENT_LOW", d.EngagementLowThreshold)
	v.SetDefault("THRESHOLD_SENTIMENT_DECLINE", d.SentimentDeclineThreshold)
	v.SetDefault("THRESHOLD_LOW_RATING", d.LowRatingThreshold)
	v.SetDefault("THRESHOLD_TECHNICAL_ISSUES", d.TechnicalIssueThreshold)
	v.SetDefault("THRESHOLD_FIRST_SESSION_RATING", d.FirstSessionRatingThreshold)
	v.SetDefault("THRESHOLD_RESCHEDULE_RATE", d.RescheduleRateThreshold)
	v.SetDefault("THRESHOLD_FIRST_SESSION_COUNT", d.FirstSessionCountThreshold)
	v.SetDefault("THRESHOLD_RISK_MEDIUM", d.RiskMedium)
	v.SetDefault("THRESHOLD_RISK_HIGH", d.RiskHigh)
	v.SetDefault("THRESHOLD_RELIABILITY", d.ReliabilityThreshold)
	v.SetDefault("THRESHOLD_ANOMALY_MULTIPLIER", d.AnomalyMultiplier)
	v.SetDefault("THRESHOLD_ANOMALY_MIN_HISTORY", d.AnomalyMinHistory)
	v.SetDefault("THRESHOLD_TREND_STABLE_TOLERANCE", d.TrendStableTolerance)
	v.SetDefault("THRESHOLD_SIGNIFICANCE_ALPHA", d.SignificanceAlpha)
}

func thresholdsFromViper(v *viper.Viper) Thresholds {
	t := DefaultThresholds()
	t.ChurnHighThreshold = v.GetFloat64("THRESHOLD_CHURN_HIGH")
	t.InactiveLoginDays = v.GetFloat64("THRESHOLD_INACTIVE_LOGIN_DAYS")
	t.NoSessionsDays = v.GetFloat64("THRESHOLD_NO_SESSIONS_DAYS")
	t.EngagementLowThreshold = v.GetFloat64("THRESHOLD_ENGAGEMENT_LOW")
	t.SentimentDeclineThreshold = v.GetFloat64("THRESHOLD_SENTIMENT_DECLINE")
	t.LowRatingThreshold = v.GetFloat64("THRESHOLD_LOW_RATING")
	t.TechnicalIssueThreshold = v.GetFloat64("THRESHOLD_TECHNICAL_ISSUES")
	t.FirstSessionRatingThreshold = v.GetFloat64("THRESHOLD_FIRST_SESSION_RATING")
	t.RescheduleRateThreshold = v.GetFloat64("THRESHOLD_RESCHEDULE_RATE")
	t.FirstSessionCountThreshold = v.GetFloat64("THRESHOLD_FIRST_SESSION_COUNT")
	t.RiskMedium = v.GetFloat64("THRESHOLD_RISK_MEDIUM")
	t.RiskHigh = v.GetFloat64("THRESHOLD_RISK_HIGH")
	t.ReliabilityThreshold = v.GetFloat64("THRESHOLD_RELIABILITY")
	t.AnomalyMultiplier = v.GetFloat64("THRESHOLD_ANOMALY_MULTIPLIER")
	t.AnomalyMinHistory = v.GetInt("THRESHOLD_ANOMALY_MIN_HISTORY")
	t.TrendStableTolerance = v.GetFloat64("THRESHOLD_TREND_STABLE_TOLERANCE")
	t.SignificanceAlpha = v.GetFloat64("THRESHOLD_SIGNIFICANCE_ALPHA")
	return t
}
