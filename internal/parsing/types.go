package parsing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NotAvailable marks a string field the upstream database did not return.
const NotAvailable = "N/A"

// Lookup is the outcome of a database lookup: either a record or a
// human-readable failure. A failed lookup is still valid pipeline input.
type Lookup[T any] struct {
	record  *T
	failure string
}

func Found[T any](record T) Lookup[T] {
	return Lookup[T]{record: &record}
}

func Failed[T any](format string, args ...any) Lookup[T] {
	return Lookup[T]{failure: fmt.Sprintf(format, args...)}
}

func (l Lookup[T]) OK() bool {
	return l.record != nil
}

// Record returns the looked-up record, or nil for a failed lookup.
func (l Lookup[T]) Record() *T {
	return l.record
}

func (l Lookup[T]) Failure() string {
	return l.failure
}

// MarshalJSON writes the record itself, or {"_error": "..."} for a failed
// lookup, which is the shape the analysis prompt knows how to read.
func (l Lookup[T]) MarshalJSON() ([]byte, error) {
	if l.record != nil {
		return marshal(l.record)
	}
	return marshal(struct {
		Error string `json:"_error"`
	}{Error: l.failure})
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type CompoundRecord struct {
	CID              *int64           `json:"cid"`
	IUPACName        string           `json:"iupac_name"`
	MolecularFormula string           `json:"molecular_formula"`
	MolecularWeight  *json.RawMessage `json:"molecular_weight"`
	ExactMass        *json.RawMessage `json:"exact_mass"`
	CanonicalSMILES  string           `json:"canonical_smiles"`
	InChI            string           `json:"inchi"`
	InChIKey         string           `json:"inchikey"`
	XLogP3           *float64         `json:"xlogp3"`
	TPSA             *float64         `json:"tpsa"`
	HBDonors         *int             `json:"hb_donors"`
	HBAcceptors      *int             `json:"hb_acceptors"`
	RotatableBonds   *int             `json:"rotatable_bonds"`
	HeavyAtoms       *int             `json:"heavy_atoms"`
	Charge           *int             `json:"charge"`
	Complexity       *float64         `json:"complexity"`
}

type StructureRecord struct {
	PDBID              string   `json:"pdb_id"`
	Title              string   `json:"title"`
	ProteinName        string   `json:"protein_name"`
	ExperimentalMethod string   `json:"experimental_method"`
	Resolution         *float64 `json:"resolution_angstrom"`
	ResolutionQuality  string   `json:"resolution_quality"`
	RFree              *float64 `json:"r_free"`
	RWork              *float64 `json:"r_work"`
	PolymerChains      *int     `json:"polymer_chains"`
	NonPolymerCount    int      `json:"nonpolymer_count"`
	HasLigand          bool     `json:"has_ligand"`
	DepositedAtoms     *int     `json:"deposited_atoms"`
	UniProtIDs         []string `json:"uniprot_ids"`
}

// AnalysisPayload is everything the completion service is asked to analyse.
// Compound and Target are always present; the caller-supplied documents are
// omitted entirely when they were not sent.
type AnalysisPayload struct {
	Compound  Lookup[CompoundRecord]  `json:"compound"`
	Target    Lookup[StructureRecord] `json:"target"`
	Docking   json.RawMessage         `json:"docking,omitempty"`
	SwissDock json.RawMessage         `json:"swissdock,omitempty"`
	PyMOL     json.RawMessage         `json:"pymol,omitempty"`
}

// CreateAnalysisPayload merges both lookups with the caller's optional
// documents. The documents are copied verbatim; an explicit JSON null counts
// as not supplied.
func CreateAnalysisPayload(compound Lookup[CompoundRecord], target Lookup[StructureRecord], docking, swissdock, pymol json.RawMessage) AnalysisPayload {
	return AnalysisPayload{
		Compound:  compound,
		Target:    target,
		Docking:   supplied(docking),
		SwissDock: supplied(swissdock),
		PyMOL:     supplied(pymol),
	}
}

func supplied(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out
}

// IndentJSON renders the payload the way it is shown to the model: two-space
// indentation, no HTML escaping of SMILES/InChI characters.
func (p AnalysisPayload) IndentJSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
