package models

import "encoding/json"

// IPReputation is the detailed provider's payload, kept loosely typed so
// the admin deep-inspection endpoint can relay everything the provider
// returns alongside the fields the pipeline actually reads.
type IPReputation struct {
	IP           string          `json:"ip"`
	IsVPN        bool            `json:"is_vpn"`
	IsTor        bool            `json:"is_tor"`
	IsProxy      bool            `json:"is_proxy"`
	IsAbuser     bool            `json:"is_abuser"`
	IsDatacenter bool            `json:"is_datacenter"`
	IsMobile     bool            `json:"is_mobile"`
	Location     *IPLocation     `json:"location,omitempty"`
	ASN          *IPASN          `json:"asn,omitempty"`
	Company      *IPCompany      `json:"company,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// IPLocation carries geo metadata from the detailed provider.
type IPLocation struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// IPASN carries network ownership metadata.
type IPASN struct {
	ASN    int    `json:"asn"`
	Org    string `json:"org"`
	Domain string `json:"domain"`
}

// IPCompany carries the operating company's reputation metadata.
type IPCompany struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	AbuserScore string `json:"abuser_score"`
}

// Block classifications returned by the simpler fallback provider.
const (
	BlockResidential = 0
	BlockFlagged     = 1
	BlockUnknown     = 2
)

// BlockClassification is the fallback provider's payload.
type BlockClassification struct {
	IP          string `json:"ip"`
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	ASN         int    `json:"asn"`
	ISP         string `json:"isp"`
	Block       int    `json:"block"`
}
