package receipt

import (
	"testing"

	"budget/internal/core"
)

func TestExtractFields(t *testing.T) {
	today := core.NewDate(2025, 6, 1)

	tests := []struct {
		name       string
		text       string
		wantAmount string
		wantDate   string
	}{
		{
			name:       "comma total and slash date",
			text:       "TOTAL 12,50 MERCI 05/03/2024",
			wantAmount: "12.50",
			wantDate:   "2024-03-05",
		},
		{
			name:       "largest figure wins",
			text:       "Pain 1.20\nLait 0,95\nTOTAL 23.45\nRendu 6.55",
			wantAmount: "23.45",
			wantDate:   "2025-06-01",
		},
		{
			name:       "two digit year and dash",
			text:       "Le 7-1-24 montant 3,00",
			wantAmount: "3.00",
			wantDate:   "2024-01-07",
		},
		{
			name:       "dot separated date",
			text:       "Date 31.12.2023 Total 100,00",
			wantAmount: "100.00",
			wantDate:   "2023-12-31",
		},
		{
			name:       "first date is used",
			text:       "02/02/2022 then 03/03/2023",
			wantAmount: "0.00",
			wantDate:   "2022-02-02",
		},
		{
			name:       "no numbers",
			text:       "nothing useful here",
			wantAmount: "0.00",
			wantDate:   "2025-06-01",
		},
		{
			name:       "impossible date falls back to today",
			text:       "45/13/2024 9.99",
			wantAmount: "9.99",
			wantDate:   "2025-06-01",
		},
		{
			name:       "placeholder text",
			text:       UnavailableText,
			wantAmount: "0.00",
			wantDate:   "2025-06-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFields(tt.text, today)
			if got.AmountString() != tt.wantAmount {
				t.Errorf("amount = %s, want %s", got.AmountString(), tt.wantAmount)
			}
			if got.Date.String() != tt.wantDate {
				t.Errorf("date = %s, want %s", got.Date, tt.wantDate)
			}
			if got.RawText != tt.text {
				t.Errorf("raw text not preserved")
			}
		})
	}
}

func TestExtractFieldsRecognizedFlag(t *testing.T) {
	today := core.NewDate(2025, 6, 1)
	if ExtractFields(UnavailableText, today).Recognized {
		t.Error("placeholder should not count as recognized")
	}
	if !ExtractFields("TOTAL 1,00", today).Recognized {
		t.Error("real text should count as recognized")
	}
}
