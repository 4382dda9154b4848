package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bidcloud/notification-engine/internal/model"
)

const (
	testAppURL = "https://bidcloud.org"
	testBrand  = "BidCloud - Uganda's Premier Contract Intelligence Platform"
)

func testContract() *model.ContractSnapshot {
	deadline := time.Date(2026, 9, 14, 17, 0, 0, 0, time.UTC)
	min, max := 500_000_000.0, 1_200_000_000.0
	return &model.ContractSnapshot{
		ID:                 "c-123",
		Title:              "Supply of Laboratory Equipment",
		ReferenceNumber:    "MOH/SUPLS/2026-27/00042",
		Category:           "Healthcare",
		ProcuringEntity:    "Ministry of Health",
		SubmissionDeadline: &deadline,
		EstimatedValueMin:  &min,
		EstimatedValueMax:  &max,
	}
}

func TestRenderEmail_ContractMatch(t *testing.T) {
	r := New(testAppURL, testBrand)
	c := testContract()

	email := r.RenderEmail(model.TypeNewContractMatch, "ignored", "ignored", model.Payload{Contract: c})

	assert.Equal(t, "New Contract Match: Supply of Laboratory Equipment", email.Subject)
	assert.Contains(t, email.HTML, "Ministry of Health")
	assert.Contains(t, email.HTML, "Healthcare")
	assert.Contains(t, email.HTML, "Monday, September 14, 2026 05:00 PM")
	assert.Contains(t, email.HTML, testAppURL+"/dashboard/contracts/c-123")
	assert.Contains(t, email.Text, testAppURL+"/dashboard/contracts/c-123")
}

func TestRenderEmail_DeadlineReminder(t *testing.T) {
	r := New(testAppURL, testBrand)

	email := r.RenderEmail(model.TypeDeadlineReminder, "", "", model.Payload{
		Contract:      testContract(),
		DaysRemaining: 3,
	})

	assert.Contains(t, email.Subject, "3 Days Left")
	assert.Contains(t, email.HTML, "3 Days Remaining")
}

func TestRenderEmail_DailyDigest(t *testing.T) {
	r := New(testAppURL, testBrand)
	deadline := time.Date(2026, 9, 20, 12, 0, 0, 0, time.UTC)

	opportunities := []model.Opportunity{
		{ID: "a", Title: "Road Maintenance", ProcuringEntity: "UNRA", SubmissionDeadline: &deadline, MatchScore: 4, DaysRemaining: 12},
		{ID: "b", Title: "ICT Consultancy", ProcuringEntity: "NITA-U", SubmissionDeadline: &deadline, MatchScore: 5, DaysRemaining: 9},
	}

	email := r.RenderEmail(model.TypeDailyDigest, "", "", model.Payload{Opportunities: opportunities})

	assert.Equal(t, "2 New Bid Opportunities for You Today!", email.Subject)
	assert.Contains(t, email.Text, "match score 4/5")
	assert.Contains(t, email.Text, "9 days remaining")
}

func TestRenderEmail_UnknownTypeFallsBack(t *testing.T) {
	r := New(testAppURL, testBrand)

	email := r.RenderEmail(model.Type("account_update"), "Account Updated", "Your profile was changed.", model.Payload{})

	assert.Equal(t, "Account Updated", email.Subject)
	assert.Equal(t, "Account Updated\n\nYour profile was changed.", email.Text)
}

func TestRenderEmail_Deterministic(t *testing.T) {
	r := New(testAppURL, testBrand)
	p := model.Payload{Contract: testContract()}

	first := r.RenderEmail(model.TypeNewContractMatch, "t", "m", p)
	second := r.RenderEmail(model.TypeNewContractMatch, "t", "m", p)

	assert.Equal(t, first, second)
}

func TestRenderWhatsApp_ContractMatch(t *testing.T) {
	r := New(testAppURL, testBrand)

	msg := r.RenderWhatsApp(model.TypeNewContractMatch, "", "", model.Payload{Contract: testContract()})

	assert.Contains(t, msg, "New Contract Match")
	assert.Contains(t, msg, "Ministry of Health")
	assert.Contains(t, msg, testBrand)
	assert.LessOrEqual(t, len([]rune(msg)), 1600)
}

func TestRenderWhatsApp_DigestShowsAtMostThree(t *testing.T) {
	r := New(testAppURL, testBrand)

	var opportunities []model.Opportunity
	for i := 0; i < 5; i++ {
		opportunities = append(opportunities, model.Opportunity{
			ID:              fmt.Sprintf("id-%d", i),
			Title:           fmt.Sprintf("Contract %d", i),
			ProcuringEntity: "Entity",
		})
	}

	msg := r.RenderWhatsApp(model.TypeDailyDigest, "", "", model.Payload{Opportunities: opportunities})

	assert.Contains(t, msg, "Found 5 new contracts")
	assert.Contains(t, msg, "... and 2 more opportunities!")
	assert.NotContains(t, msg, "Contract 3")
}

func TestRenderWhatsApp_TruncatesLongMessages(t *testing.T) {
	r := New(testAppURL, testBrand)

	msg := r.RenderWhatsApp(model.Type("unknown"), strings.Repeat("x", 2000), "body", model.Payload{})

	assert.LessOrEqual(t, len([]rune(msg)), 1600)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{2_500_000_000, "2.5B"},
		{1_000_000_000, "1.0B"},
		{3_200_000, "3.2M"},
		{45_000, "45.0K"},
		{1_000, "1.0K"},
		{999, "999"},
		{0, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount), "amount %v", tt.amount)
	}
}

func TestFormatValueRange(t *testing.T) {
	min, max := 800_000.0, 2_000_000.0

	assert.Equal(t, "UGX 800.0K - 2.0M", FormatValueRange(&min, &max))
	assert.Equal(t, "From UGX 800.0K", FormatValueRange(&min, nil))
	assert.Equal(t, "Up to UGX 2.0M", FormatValueRange(nil, &max))
	assert.Equal(t, "Not specified", FormatValueRange(nil, nil))
}
