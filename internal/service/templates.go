package service

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/noah-isme/tutor-insights-api/internal/analytics"
	"github.com/noah-isme/tutor-insights-api/internal/models"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
)

const (
	TemplateNoLogin7d           = "engagement_no_login_7d"
	TemplateLowEngagement       = "quality_low_engagement"
	TemplateTechnicalIssues     = "technical_issues_spike"
	TemplateFirstSessionPrep    = "first_session_prep"
	TemplateReengagement14d     = "reengagement_14d"
	TemplatePoorFirstSession    = "quality_poor_first_session"
	TemplateHighReschedule      = "reliability_high_reschedule"
	TemplatePositiveRecognition = "positive_recognition"
)

var templateCatalog = []models.InterventionTemplate{
	{
		ID:      TemplateNoLogin7d,
		Name:    "No Login - 7 Days",
		Type:    models.InterventionEngagement,
		Subject: "We miss you, {{.tutorName}}!",
		Content: `Hi {{.tutorName}},

It's been {{.daysSinceLogin}} days since we last saw you on the platform. We wanted to check in and see if everything is okay.
{{if .lastSessionDate}}
Your last session was on {{.lastSessionDate}}.
{{end}}
Your students are waiting for you! Log in to check your upcoming sessions and update your availability.

Log in to your dashboard: {{.loginUrl}}

Need help? Reply to this email and we'll assist you.`,
		RequiredVariables: []string{"tutorName", "daysSinceLogin", "loginUrl"},
		RecommendedTiming: "7 days after last login",
		SuccessMetrics:    []string{"login_within_48h", "session_completed_within_7d"},
	},
	{
		ID:      TemplateLowEngagement,
		Name:    "Low Engagement Score",
		Type:    models.InterventionQuality,
		Subject: "Tips to boost student engagement",
		Content: `Hi {{.tutorName}},

We've noticed your recent engagement scores ({{.currentEngagement}}/10) could use a boost. Here are some quick tips:

1. Ask more interactive questions
2. Use visual aids and screen sharing
3. Encourage students to explain their thinking
4. Keep energy high and be encouraging

Target: {{.targetEngagement}}/10

Training resources with specific strategies: {{.resourcesUrl}}

Want personalized coaching? Reply to schedule a 1-on-1.`,
		RequiredVariables: []string{"tutorName", "currentEngagement", "targetEngagement", "resourcesUrl"},
		RecommendedTiming: "When engagement < 6.0 for 3+ sessions",
		SuccessMetrics:    []string{"engagement_increase_0.5", "resources_accessed"},
	},
	{
		ID:      TemplateTechnicalIssues,
		Name:    "Technical Issues Support",
		Type:    models.InterventionTechnical,
		Subject: "Let us help with your technical issues",
		Content: `Hi {{.tutorName}},

We've noticed technical issues in {{.issueRate}}% of your recent sessions. We want to help!

Common solutions:
- Check internet speed (10+ Mbps recommended)
- Close unnecessary apps
- Use a wired connection if possible
- Update your browser

Get technical support: {{.supportUrl}}

Run a system check from your dashboard to identify issues.`,
		RequiredVariables: []string{"tutorName", "issueRate", "supportUrl"},
		RecommendedTiming: "When technical issue rate > 15%",
		SuccessMetrics:    []string{"technical_issues_decrease", "support_ticket_resolved"},
	},
	{
		ID:      TemplateFirstSessionPrep,
		Name:    "First Session Preparation",
		Type:    models.InterventionOnboarding,
		Subject: "Prepare for your first session with {{.studentName}}",
		Content: `Hi {{.tutorName}}!

You have a first session with {{.studentName}} tomorrow!

Session details:
- Date & time: {{.sessionDate}} at {{.sessionTime}}
- Subject: {{.subject}}
- Grade: {{.gradeLevel}}

First session checklist:
- Join 5 minutes early
- Start with introductions
- Set expectations
- Be encouraging and positive
- End with next steps

Full prep guide: {{.prepGuideUrl}}

Tutors with great first sessions have 40% better retention!`,
		RequiredVariables: []string{"tutorName", "studentName", "sessionDate", "sessionTime", "subject", "gradeLevel", "prepGuideUrl"},
		RecommendedTiming: "24 hours before first session",
		SuccessMetrics:    []string{"first_session_rating_4_plus", "student_books_next_session"},
	},
	{
		ID:      TemplateReengagement14d,
		Name:    "Re-engagement - 14 Days",
		Type:    models.InterventionReEngagement,
		Subject: "Come back to tutoring!",
		Content: `Hi {{.tutorName}},

It's been {{.daysSinceActive}} days - we hope everything is going well!

Your impact: {{.totalSessions}} sessions completed.

Students need tutors like you! What's new:
- Enhanced scheduling tools
- New training resources
- Performance insights dashboard
- Flexible availability

Return to your dashboard: {{.dashboardUrl}}

Questions? Reply to this email.`,
		RequiredVariables: []string{"tutorName", "daysSinceActive", "totalSessions", "dashboardUrl"},
		RecommendedTiming: "14 days after last session",
		SuccessMetrics:    []string{"login_within_7d", "session_scheduled_within_14d"},
	},
	{
		ID:      TemplatePoorFirstSession,
		Name:    "First Session Improvement",
		Type:    models.InterventionQuality,
		Subject: "Let's improve your first sessions",
		Content: `Hi {{.tutorName}},

We noticed your first session ratings ({{.firstSessionRating}}/5) could be stronger. First impressions really matter!

Key improvements:
1. Build rapport in the first 5 minutes
2. Set clear expectations
3. Be extra encouraging
4. Summarize what you'll cover next time

First session training: {{.trainingUrl}}

Need 1-on-1 coaching? Reply to this email.`,
		RequiredVariables: []string{"tutorName", "firstSessionRating", "trainingUrl"},
		RecommendedTiming: "After 3+ poor first sessions",
		SuccessMetrics:    []string{"first_session_rating_improvement", "training_completed"},
	},
	{
		ID:      TemplateHighReschedule,
		Name:    "Reliability Check-in",
		Type:    models.InterventionReliability,
		Subject: "Let's talk about your schedule",
		Content: `Hi {{.tutorName}},

Your reschedule rate is {{.rescheduleRate}}% (target: {{.targetRate}}%). Let's work on this together.

Tips for better scheduling:
- Only mark times you're truly available
- Set calendar reminders
- Update availability weekly
- Block buffer time between sessions

Reliable tutors get more bookings and better ratings!

Need help managing your schedule? Reply and we'll assist.`,
		RequiredVariables: []string{"tutorName", "rescheduleRate", "targetRate"},
		RecommendedTiming: "When reschedule rate > 15%",
		SuccessMetrics:    []string{"reschedule_rate_decrease", "availability_updated"},
	},
	{
		ID:      TemplatePositiveRecognition,
		Name:    "Star Performer Recognition",
		Type:    models.InterventionRecognition,
		Subject: "You're a star tutor!",
		Content: `Hi {{.tutorName}},

Congratulations! You're in the top {{.rank}}% of tutors!

Performance score: {{.performanceScore}}/10
{{if .specialRecognition}}{{.specialRecognition}}
{{end}}
Your students love working with you, and it shows. Keep up the amazing work!

Would you be interested in mentoring other tutors? Reply if you'd like to hear more.`,
		RequiredVariables: []string{"tutorName", "performanceScore", "rank"},
		RecommendedTiming: "Monthly for top 10% performers",
		SuccessMetrics:    []string{"continued_high_performance", "mentor_interest"},
	},
}

type compiledTemplate struct {
	meta    models.InterventionTemplate
	subject *template.Template
	content *template.Template
}

// TemplateCatalog renders the intervention templates.
type TemplateCatalog struct {
	byID map[string]compiledTemplate
}

// NewTemplateCatalog parses the built-in templates. Rendering fails on any
// variable the data does not define.
func NewTemplateCatalog() *TemplateCatalog {
	c := &TemplateCatalog{byID: make(map[string]compiledTemplate, len(templateCatalog))}
	for _, t := range templateCatalog {
		c.byID[t.ID] = compiledTemplate{
			meta:    t,
			subject: template.Must(template.New(t.ID + ".subject").Option("missingkey=error").Parse(t.Subject)),
			content: template.Must(template.New(t.ID + ".content").Option("missingkey=error").Parse(t.Content)),
		}
	}
	return c
}

// List returns the catalog ordered as declared.
func (c *TemplateCatalog) List() []models.InterventionTemplate {
	out := make([]models.InterventionTemplate, 0, len(templateCatalog))
	for _, t := range templateCatalog {
		out = append(out, c.byID[t.ID].meta)
	}
	return out
}

// Get looks up a template by id.
func (c *TemplateCatalog) Get(id string) (models.InterventionTemplate, bool) {
	t, ok := c.byID[id]
	return t.meta, ok
}

// MissingVariables lists required variables absent or blank in vars, sorted.
func (c *TemplateCatalog) MissingVariables(id string, vars map[string]string) []string {
	t, ok := c.byID[id]
	if !ok {
		return nil
	}
	var missing []string
	for _, name := range t.meta.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Render executes the subject and content of template id against vars.
func (c *TemplateCatalog) Render(id string, vars map[string]string) (string, string, error) {
	t, ok := c.byID[id]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", id)
	}
	if missing := c.MissingVariables(id, vars); len(missing) > 0 {
		return "", "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	var subject, content bytes.Buffer
	if err := t.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.content.Execute(&content, vars); err != nil {
		return "", "", fmt.Errorf("render content: %w", err)
	}
	return subject.String(), content.String(), nil
}

// RecommendTemplate picks the template best suited to a tutor's current
// signals, most urgent first. The longer inactivity is checked before the
// shorter one so it can ever match.
func RecommendTemplate(agg models.TutorAggregate, th config.Thresholds) (string, bool) {
	switch {
	case agg.DaysSinceLogin.Valid && agg.DaysSinceLogin.Int >= 14:
		return TemplateReengagement14d, true
	case agg.DaysSinceLogin.Valid && float64(agg.DaysSinceLogin.Int) >= th.InactiveLoginDays:
		return TemplateNoLogin7d, true
	case agg.AvgEngagement.Valid && agg.AvgEngagement.Float64 < th.EngagementLowThreshold:
		return TemplateLowEngagement, true
	case agg.TechnicalIssueRate.Valid && agg.TechnicalIssueRate.Float64 > th.TechnicalIssueThreshold:
		return TemplateTechnicalIssues, true
	case agg.FirstSessionAvgRating.Valid && agg.FirstSessionAvgRating.Float64 < th.FirstSessionRatingThreshold:
		return TemplatePoorFirstSession, true
	case agg.RescheduleRate.Valid && agg.RescheduleRate.Float64 > th.RescheduleRateThreshold:
		return TemplateHighReschedule, true
	case analytics.CompositeScore(agg) >= starPerformerScore:
		return TemplatePositiveRecognition, true
	}
	return "", false
}

const starPerformerScore = 8.5

// topPercentRank places agg among population by composite score and returns
// the smallest whole "top N%" bucket it falls in. Ties share the better rank.
func topPercentRank(agg models.TutorAggregate, population []models.TutorAggregate) (string, bool) {
	if len(population) == 0 {
		return "", false
	}
	score := analytics.CompositeScore(agg)
	n, higher, member := len(population), 0, false
	for _, other := range population {
		if other.TutorID == agg.TutorID {
			member = true
			continue
		}
		if analytics.CompositeScore(other) > score {
			higher++
		}
	}
	if !member {
		n++
	}
	return strconv.Itoa((100*(higher+1) + n - 1) / n), true
}

// templateVariables builds the default variables available to every
// template from a tutor aggregate. Caller-supplied variables override them.
func templateVariables(agg models.TutorAggregate, baseURL string, th config.Thresholds, overrides map[string]string) map[string]string {
	baseURL = strings.TrimRight(baseURL, "/")
	name := agg.TutorName
	if name == "" {
		name = "Tutor " + agg.TutorID
	}
	vars := map[string]string{
		"tutorName":          name,
		"tutorId":            agg.TutorID,
		"primarySubject":     agg.PrimarySubject,
		"subject":            agg.PrimarySubject,
		"monthsExperience":   strconv.Itoa(agg.MonthsExperience),
		"sessionsCompleted":  strconv.Itoa(agg.Sessions30d),
		"totalSessions":      strconv.Itoa(agg.TotalSessions),
		"targetEngagement":   "7.0",
		"targetRate":         fmt.Sprintf("%.0f", th.RescheduleRateThreshold*100),
		"performanceScore":   fmt.Sprintf("%.1f", analytics.CompositeScore(agg)),
		"lastSessionDate":    "",
		"specialRecognition": "",
		"loginUrl":           baseURL,
		"dashboardUrl":       baseURL + "/dashboard",
		"resourcesUrl":       baseURL + "/resources",
		"supportUrl":         baseURL + "/support",
		"prepGuideUrl":       baseURL + "/guides/first-session",
		"trainingUrl":        baseURL + "/training",
	}
	if agg.AvgEngagement.Valid {
		vars["currentEngagement"] = fmt.Sprintf("%.1f", agg.AvgEngagement.Float64)
	}
	if agg.AvgRating.Valid {
		vars["currentRating"] = fmt.Sprintf("%.1f", agg.AvgRating.Float64)
	}
	if agg.DaysSinceLogin.Valid {
		days := strconv.Itoa(agg.DaysSinceLogin.Int)
		vars["daysSinceLogin"] = days
		vars["daysSinceActive"] = days
	}
	if agg.TechnicalIssueRate.Valid {
		vars["issueRate"] = fmt.Sprintf("%.0f", agg.TechnicalIssueRate.Float64*100)
	}
	if agg.FirstSessionAvgRating.Valid {
		vars["firstSessionRating"] = fmt.Sprintf("%.1f", agg.FirstSessionAvgRating.Float64)
	}
	if agg.RescheduleRate.Valid {
		vars["rescheduleRate"] = fmt.Sprintf("%.0f", agg.RescheduleRate.Float64*100)
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}
