package models

// Country is immutable reference data created at seed time.
type Country struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	CurrencyCode string `db:"currency_code" json:"currencyCode"`
	CurrencyName string `db:"currency_name" json:"currencyName"`
}

// CountryStats augments a country with read-side aggregates.
type CountryStats struct {
	Country
	SchoolCount int `json:"schoolCount"`
}
