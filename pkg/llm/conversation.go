package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Escalation types returned by checkEscalationTriggers.
const (
	escalationPaymentTerms = "payment_terms"
	escalationNegotiation  = "negotiation"
	escalationPriceReview  = "price_review"
)

var paymentKeywords = []string{
	"50%", "percent", "partial payment", "installment",
	"pay half", "split payment", "% now", "% later",
}

var negotiationKeywords = []string{
	"negotiate", "discuss terms", "make a deal",
	"counter offer", "bargain", "legal", "contract",
}

// checkEscalationTriggers reports whether the message or extracted data
// requires human handling. Payment terms take precedence over negotiation.
func checkEscalationTriggers(message string, extracted map[string]any) string {
	lower := strings.ToLower(message)

	for _, kw := range paymentKeywords {
		if strings.Contains(lower, kw) {
			return escalationPaymentTerms
		}
	}
	for _, kw := range negotiationKeywords {
		if strings.Contains(lower, kw) {
			return escalationNegotiation
		}
	}

	if extracted != nil {
		situation := subMap(extracted, "situation")
		if price, ok := asNumber(situation["asking_price"]); ok && price > priceReviewThreshold {
			return escalationPriceReview
		}
	}
	return ""
}

// identifyMissingFields lists the critical fields not yet gathered, in
// the order the bot should ask for them.
func identifyMissingFields(extracted map[string]any) []string {
	if extracted == nil {
		return []string{"address", "property_details", "timeline"}
	}

	var missing []string
	prop := subMap(extracted, "property")
	situation := subMap(extracted, "situation")

	if !present(prop["address"]) && !(present(prop["city"]) && present(prop["zip_code"])) {
		missing = append(missing, "address")
	}
	if !present(prop["bedrooms"]) || !present(prop["condition"]) {
		missing = append(missing, "property_details")
	}
	if !present(situation["urgency"]) {
		missing = append(missing, "timeline")
	}
	if !present(situation["motivation"]) {
		missing = append(missing, "motivation")
	}
	return missing
}

// shouldConfirmDetails reports whether enough property detail exists to
// confirm before proceeding: an address plus bedrooms plus condition.
func shouldConfirmDetails(extracted map[string]any) bool {
	if extracted == nil {
		return false
	}
	prop := subMap(extracted, "property")
	hasAddress := present(prop["address"]) || (present(prop["city"]) && present(prop["zip_code"]))
	return hasAddress && prop["bedrooms"] != nil && prop["condition"] != nil
}

// escalationResponse returns the canned reply for a human-escalation
// scenario. No provider is involved.
func escalationResponse(escalationType string) *Response {
	templates := map[string]string{
		escalationPaymentTerms: "Thanks for that info — I'll pass this to an agent who will " +
			"review the payment terms and follow up within 24 hours.",
		escalationNegotiation: "I'll connect you with an agent who can discuss those details. " +
			"They'll reach out shortly.",
		escalationPriceReview: "Thank you for the information. An agent will review your property details " +
			"and reach out to discuss options.",
	}

	content, ok := templates[escalationType]
	if !ok {
		content = templates[escalationNegotiation]
	}
	return &Response{
		Content:  content,
		Model:    "template",
		Metadata: map[string]any{"escalation_type": escalationType},
	}
}

// confirmationResponse summarizes the gathered property details and asks
// the seller to confirm them.
func confirmationResponse(extracted map[string]any) *Response {
	prop := subMap(extracted, "property")

	var detailParts []string
	if present(prop["bedrooms"]) {
		detailParts = append(detailParts, fmt.Sprintf("%v bedrooms", prop["bedrooms"]))
	}
	if present(prop["bathrooms"]) {
		detailParts = append(detailParts, fmt.Sprintf("%v bathrooms", prop["bathrooms"]))
	}
	if present(prop["condition"]) {
		detailParts = append(detailParts, fmt.Sprintf("%v condition", prop["condition"]))
	}

	var address string
	switch {
	case present(prop["address"]):
		address = fmt.Sprintf("%v", prop["address"])
	case present(prop["city"]) && present(prop["state"]):
		address = fmt.Sprintf("%v, %v", prop["city"], prop["state"])
	default:
		address = "the property"
	}

	details := "the details"
	if len(detailParts) > 0 {
		details = strings.Join(detailParts, ", ")
	}

	return &Response{
		Content: fmt.Sprintf("Let me confirm: %s at %s. "+
			"Is this correct? (Reply 'yes' to continue or provide corrections)", details, address),
		Model:    "template",
		Metadata: map[string]any{"type": "confirmation"},
	}
}

// BuildInfoSummary renders a human-readable summary of everything known
// about a lead, used both as prompt context and by callers for review.
func BuildInfoSummary(extracted map[string]any) string {
	if extracted == nil {
		return "No information gathered yet"
	}

	var parts []string
	appendField := func(label string, v any) {
		if present(v) {
			parts = append(parts, fmt.Sprintf("%s: %v", label, v))
		}
	}

	contact := subMap(extracted, "contact")
	appendField("Name", contact["name"])
	appendField("Phone", contact["phone"])
	appendField("Email", contact["email"])

	prop := subMap(extracted, "property")
	if present(prop["address"]) {
		appendField("Address", prop["address"])
	} else {
		appendField("City", prop["city"])
	}
	appendField("Bedrooms", prop["bedrooms"])
	appendField("Bathrooms", prop["bathrooms"])
	appendField("Condition", prop["condition"])

	situation := subMap(extracted, "situation")
	appendField("Timeline", situation["urgency"])
	appendField("Motivation", situation["motivation"])

	if len(parts) == 0 {
		return "Limited information provided"
	}
	return strings.Join(parts, "; ")
}

// smartFallbackResponse picks a canned reply keyed to the next missing
// field when every provider is unavailable.
func smartFallbackResponse(message string, extracted map[string]any, missingFields []string) *Response {
	missing := make(map[string]bool, len(missingFields))
	for _, f := range missingFields {
		missing[f] = true
	}

	var content string
	if extracted != nil {
		prop := subMap(extracted, "property")
		switch {
		case present(prop["address"]) && missing["property_details"]:
			content = "Got it! How many bedrooms does the property have?"
		case present(prop["bedrooms"]) && missing["property_details"]:
			content = "Thanks! What's the overall condition? (Excellent / Good / Needs TLC / Major repairs)"
		case missing["address"]:
			content = "Thanks for reaching out! Could you share the property address?"
		default:
			content = "Thanks! When are you looking to sell? (ASAP / 1-3 months / Flexible)"
		}
	} else {
		if strings.Contains(strings.ToLower(message), "address") || containsDigit(message) {
			content = "Thanks! How many bedrooms does the property have?"
		} else {
			content = "Thanks for reaching out! Could you share the property address?"
		}
	}

	return &Response{
		Content:  content,
		Model:    "fallback",
		Metadata: map[string]any{"fallback": true},
	}
}

// emptyExtractionStructure returns a schema-shaped extraction with every
// leaf null, used when extraction fails entirely.
func emptyExtractionStructure() map[string]any {
	return map[string]any{
		"contact": map[string]any{
			"name":                     nil,
			"phone":                    nil,
			"email":                    nil,
			"preferred_contact_method": nil,
		},
		"property": map[string]any{
			"address":       nil,
			"city":          nil,
			"state":         nil,
			"zip_code":      nil,
			"property_type": nil,
			"bedrooms":      nil,
			"bathrooms":     nil,
			"square_feet":   nil,
			"year_built":    nil,
			"condition":     nil,
		},
		"situation": map[string]any{
			"motivation":         nil,
			"urgency":            nil,
			"occupancy_status":   nil,
			"mortgage_status":    nil,
			"asking_price":       nil,
			"repairs_needed":     nil,
			"open_to_cash_offer": nil,
		},
		"intent": map[string]any{
			"classification": "unclear",
			"confidence":     0.0,
			"next_action":    nil,
		},
		"metadata": map[string]any{
			"language":         "en",
			"sentiment":        "neutral",
			"contains_pii":     false,
			"extraction_notes": "Failed to extract data from message",
		},
	}
}

// fallbackExtraction builds the safe result returned when no provider
// produced usable output.
func (c *Client) fallbackExtraction(reason string) *ExtractionResult {
	data := emptyExtractionStructure()
	subMap(data, "metadata")["extraction_notes"] = "Extraction failed: " + reason

	content, _ := json.Marshal(data)
	return &ExtractionResult{
		Data:             data,
		Validated:        false,
		ValidationErrors: []string{reason},
		Response: &Response{
			Content: string(content),
			Model:   "fallback",
		},
	}
}

// subMap returns the nested map under key, or an empty map.
func subMap(data map[string]any, key string) map[string]any {
	if m, ok := data[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// present reports whether a value carries information: non-nil, non-empty
// string, non-zero number, or true boolean.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// asNumber coerces JSON numbers of either decoding to float64.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
