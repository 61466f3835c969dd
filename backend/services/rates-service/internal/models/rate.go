package models

import (
	"database/sql"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NullString marshals SQL NULL as JSON null.
type NullString struct {
	sql.NullString
}

// MarshalJSON implements json.Marshaler.
func (s NullString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.String)
}

// NullInt64 marshals SQL NULL as JSON null.
type NullInt64 struct {
	sql.NullInt64
}

// MarshalJSON implements json.Marshaler.
func (n NullInt64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Int64)
}

// Rate is one row of the Rates table.
type Rate struct {
	ID             int64               `json:"id"`
	RateID         NullString          `json:"Rate_ID"`
	UtilityName    NullString          `json:"SPL_Utility_Name"`
	ProductName    NullString          `json:"Product_Name"`
	Rate           decimal.NullDecimal `json:"Rate"`
	ETF            decimal.NullDecimal `json:"ETF"`
	MSF            decimal.NullDecimal `json:"MSF"`
	CompanyDBAName NullString          `json:"Company_DBA_Name"`
	Duration       NullInt64           `json:"duracion_rate"`
	LastUpdated    NullString          `json:"Last_Updated"`
	SPL            NullString          `json:"SPL"`
}

// RateView is one row of rates_view, the rate data joined with utility metadata.
type RateView struct {
	RateID         NullString          `json:"Rate_ID"`
	UtilityName    NullString          `json:"Standard_Utility_Name"`
	ProductName    NullString          `json:"Product_Name"`
	Rate           decimal.NullDecimal `json:"Rate"`
	ETF            decimal.NullDecimal `json:"ETF"`
	MSF            decimal.NullDecimal `json:"MSF"`
	Duration       NullInt64           `json:"duracion_rate"`
	CompanyDBAName NullString          `json:"Company_DBA_Name"`
	LastUpdated    NullString          `json:"Last_Updated"`
	SPL            NullString          `json:"SPL"`
	State          NullString          `json:"State"`
	LDC            NullString          `json:"LDC"`
	LogoURL        NullString          `json:"Logo_URL"`
	ServiceType    NullString          `json:"Service_Type"`
	UnitOfMeasure  NullString          `json:"Unit_of_Measure"`
	ExcelStatus    NullString          `json:"Excel_Status"`
	UtilityContact NullString          `json:"utility_contact"`
}

// BillField is a Utility_Bill_Fields row keyed by column name.
type BillField map[string]any
