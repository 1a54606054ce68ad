package dto

import "github.com/opensalaries/teacherpay-api/internal/models"

// SchoolSearchResult is one ranked autocomplete candidate.
type SchoolSearchResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CountryID   string `json:"countryId"`
	CountryName string `json:"countryName"`
}

// SchoolDetail is the public school page payload.
type SchoolDetail struct {
	models.SchoolWithCountry
	Averages *models.SalaryAverages `json:"averages,omitempty"`
}

// CountrySchool pairs a school with its salary averages for country pages.
type CountrySchool struct {
	models.School
	Averages *models.SalaryAverages `json:"averages,omitempty"`
}

// RatesResponse exposes the current period's rate table.
type RatesResponse struct {
	Base  string           `json:"base"`
	Rates models.RateTable `json:"rates"`
}
