package domain

import "time"

// Evidence is the structured record recovered from an uploaded evidence file.
// Recovered fields are upper-cased; an empty field was not found.
type Evidence struct {
	FileName     string    `json:"file_name,omitempty"`
	Exchange     string    `json:"exchange,omitempty"`
	Pair         string    `json:"pair,omitempty"`
	InstType     string    `json:"inst_type,omitempty"`
	ContractType string    `json:"contract_type,omitempty"`
	Warnings     []string  `json:"warnings"`
	RawText      string    `json:"-"`
	ParsedAt     time.Time `json:"parsed_at"`
}

// Mismatch is the cross-validation verdict between a selected pair and the
// evidence. The zero value means no mismatch.
type Mismatch string

const (
	MismatchNone              Mismatch = ""
	MismatchParsedPairMissing Mismatch = "parsed-pair-missing"
	MismatchPair              Mismatch = "pair-mismatch"
	MismatchInstType          Mismatch = "inst-type-mismatch"
	MismatchContractType      Mismatch = "contract-type-mismatch"
)
