package cel

// AudienceExpressionExamples provides example CEL expressions for
// campaign audience filters.
var AudienceExpressionExamples = map[string]string{
	"subscribed_only":      `subscribed`,
	"domain_match":         `email.endsWith("@example.com")`,
	"tagged":               `"newsletter" in tags`,
	"engagement_threshold": `engagement_score > 0.5`,
	"plan_check":           `attributes.plan == "premium"`,
	"country_list":         `attributes.country in ["US", "CA", "GB"]`,
	"has_attribute":        `has(attributes.company) && attributes.company != ""`,
	"combined_conditions":  `subscribed && engagement_score >= 0.25 && "vip" in tags`,
	"complex_logic":        `(attributes.plan == "premium" || attributes.plan == "enterprise") && subscribed`,
}
