package models

// School is a salary-reporting institution, created either at seed time or
// as a side effect of approving a new-school submission.
type School struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	NameNormalized  string `db:"name_normalized" json:"-"`
	CountryID       string `db:"country_id" json:"countryId"`
	IsUserSubmitted bool   `db:"is_user_submitted" json:"isUserSubmitted"`
}

// SchoolWithCountry joins the country reference for read endpoints.
type SchoolWithCountry struct {
	School
	CountryName  string `db:"country_name" json:"countryName"`
	CurrencyCode string `db:"currency_code" json:"currencyCode"`
	CurrencyName string `db:"currency_name" json:"currencyName"`
}

// SalaryAverages summarises approved teacher-tier gross pay for a school
// or country grouping.
type SalaryAverages struct {
	USD               float64 `json:"usd"`
	GBP               float64 `json:"gbp"`
	EUR               float64 `json:"eur"`
	Local             float64 `json:"local"`
	LocalCurrencyCode string  `json:"localCurrencyCode"`
	Count             int     `json:"count"`
}
