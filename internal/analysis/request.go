package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Hanishchow/Biocore-agent/internal/parsing"
)

const (
	msgNoBody     = "No JSON body received"
	msgNoCompound = "Provide compound_name or cid"
	msgBadPDBID   = "Provide a valid 4-char pdb_id e.g. 1EQG"
	msgBadCID     = "cid must be a positive integer"
	msgNoAPIKey   = "NVIDIA_API_KEY not configured on server"
)

// Request is the body of POST /biocore and of a queued analysis message.
type Request struct {
	CompoundName     string          `json:"compound_name"`
	CID              *json.Number    `json:"cid"`
	PDBID            string          `json:"pdb_id"`
	DockingResults   json.RawMessage `json:"docking_results"`
	SwissDockResults json.RawMessage `json:"swissdock_results"`
	PyMOLData        json.RawMessage `json:"pymol_data"`
}

// ParseRequest decodes a request body. Anything but a non-empty JSON object
// is reported as a missing body.
func ParseRequest(body []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil || len(fields) == 0 {
		return Request{}, &ValidationError{Message: msgNoBody}
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Request{}, &ValidationError{Message: fmt.Sprintf("field %s has the wrong type (%s)", typeErr.Field, typeErr.Value)}
		}
		return Request{}, &ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return req, nil
}

// validated is a Request after the checks every analysis must pass.
type validated struct {
	query   parsing.CompoundQuery
	queried any
	pdbID   string
}

func (r Request) validate() (validated, error) {
	var cid int64
	if r.CID != nil && r.CID.String() != "" {
		n, err := r.CID.Int64()
		if err != nil || n < 0 {
			return validated{}, &ValidationError{Message: msgBadCID}
		}
		cid = n
	}

	name := strings.TrimSpace(r.CompoundName)
	if name == "" && cid == 0 {
		return validated{}, &ValidationError{Message: msgNoCompound}
	}

	pdbID := NormalizePDBID(r.PDBID)
	if !ValidPDBID(pdbID) {
		return validated{}, &ValidationError{Message: msgBadPDBID}
	}

	// The lookup prefers the CID; the response echoes the name when one was sent.
	var queried any = r.CompoundName
	if name == "" {
		queried = json.Number(fmt.Sprint(cid))
	}

	return validated{
		query:   parsing.CompoundQuery{Name: name, CID: cid},
		queried: queried,
		pdbID:   pdbID,
	}, nil
}

// ValidPDBID reports whether a normalized identifier is four characters long.
func ValidPDBID(id string) bool {
	return utf8.RuneCountInString(id) == 4
}

// NormalizePDBID trims and upper-cases a PDB identifier.
func NormalizePDBID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (v validated) queriedString() string {
	if s, ok := v.queried.(string); ok {
		return s
	}
	return fmt.Sprint(v.queried)
}
