package store

import "encoding/json"

// Analysis is one row of the analyses table.
type Analysis struct {
	ID              int64           `json:"id"`
	Slug            string          `json:"slug"`
	CompoundQueried string          `json:"compound_queried"`
	PDBID           string          `json:"pdb_id"`
	Model           string          `json:"model"`
	Payload         json.RawMessage `json:"payload"`
	Report          string          `json:"report"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}
