package domain

import "time"

type LegalForm string

const (
	LegalFormLLC        LegalForm = "ooo"
	LegalFormSoleTrader LegalForm = "ip"
)

type BankDetails struct {
	BIK                  string `json:"bik,omitempty"`
	BankName             string `json:"bank_name,omitempty"`
	CorrespondentAccount string `json:"correspondent_account,omitempty"`
	CheckingAccount      string `json:"checking_account,omitempty"`
}

type Organization struct {
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	Name      string      `json:"name"`
	LegalForm LegalForm   `json:"legal_form"`
	INN       string      `json:"inn"`
	KPP       string      `json:"kpp,omitempty"`
	OGRN      string      `json:"ogrn"`
	Address   string      `json:"address"`
	Bank      BankDetails `json:"bank"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
