package parsing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
)

const pubChemProperties = "IUPACName,MolecularFormula,MolecularWeight,ExactMass," +
	"CanonicalSMILES,InChI,InChIKey,XLogP,TPSA," +
	"HBondDonorCount,HBondAcceptorCount,RotatableBondCount," +
	"HeavyAtomCount,Charge,Complexity"

// CompoundQuery names a compound either by PubChem CID or by name. A non-zero
// CID takes precedence.
type CompoundQuery struct {
	Name string
	CID  int64
}

// label names the query the way the caller asked for it: by name if one was
// given, even when the CID is what gets looked up.
func (q CompoundQuery) label() string {
	if q.Name != "" {
		return q.Name
	}
	return strconv.FormatInt(q.CID, 10)
}

type PubChemResponse struct {
	PropertyTable *struct {
		Properties []PubChemProperties `json:"Properties"`
	} `json:"PropertyTable"`
	Fault *struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Fault"`
}

type PubChemProperties struct {
	CID                *int64           `json:"CID"`
	IUPACName          *string          `json:"IUPACName"`
	MolecularFormula   *string          `json:"MolecularFormula"`
	MolecularWeight    *json.RawMessage `json:"MolecularWeight"`
	ExactMass          *json.RawMessage `json:"ExactMass"`
	CanonicalSMILES    *string          `json:"CanonicalSMILES"`
	ConnectivitySMILES *string          `json:"ConnectivitySMILES"`
	SMILES             *string          `json:"SMILES"`
	InChI              *string          `json:"InChI"`
	InChIKey           *string          `json:"InChIKey"`
	XLogP              *float64         `json:"XLogP"`
	TPSA               *float64         `json:"TPSA"`
	HBondDonorCount    *int             `json:"HBondDonorCount"`
	HBondAcceptorCount *int             `json:"HBondAcceptorCount"`
	RotatableBondCount *int             `json:"RotatableBondCount"`
	HeavyAtomCount     *int             `json:"HeavyAtomCount"`
	Charge             *int             `json:"Charge"`
	Complexity         *float64         `json:"Complexity"`
}

type PubChemClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewPubChemClient(cfg config.LookupConfig, log *zap.Logger) *PubChemClient {
	return &PubChemClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.Named("pubchem"),
	}
}

// FetchCompound looks the compound up in PubChem. It never returns an error:
// every failure is folded into a failed Lookup naming the cause.
func (c *PubChemClient) FetchCompound(ctx context.Context, query CompoundQuery) Lookup[CompoundRecord] {
	c.log.Info("fetching compound", zap.String("query", query.label()))

	raw, err := c.get(ctx, c.propertyURL(query))
	if err != nil {
		c.log.Warn("compound lookup failed", zap.String("query", query.label()), zap.Error(err))
		return Failed[CompoundRecord]("PubChem fetch failed: %v", err)
	}

	if raw.PropertyTable == nil || len(raw.PropertyTable.Properties) == 0 {
		fields := []zap.Field{zap.String("query", query.label())}
		if raw.Fault != nil {
			fields = append(fields, zap.String("fault", raw.Fault.Message))
		}
		c.log.Warn("compound lookup returned no results", fields...)
		return Failed[CompoundRecord]("PubChem returned no results for: %s", query.label())
	}

	return Found(TidyPubChemProperties(raw.PropertyTable.Properties[0]))
}

func (c *PubChemClient) propertyURL(query CompoundQuery) string {
	if query.CID > 0 {
		return fmt.Sprintf("%s/compound/cid/%d/property/%s/JSON", c.baseURL, query.CID, pubChemProperties)
	}
	return fmt.Sprintf("%s/compound/name/%s/property/%s/JSON", c.baseURL, url.PathEscape(query.Name), pubChemProperties)
}

// get decodes the body whatever the status: PubChem reports unknown names as
// a 404 carrying a JSON Fault document.
func (c *PubChemClient) get(ctx context.Context, u string) (*PubChemResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Debug("error closing PubChem response body", zap.Error(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed PubChemResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return &parsed, nil
}

// TidyPubChemProperties maps one PubChem property row onto a CompoundRecord.
// Masses are kept as PubChem sent them, which is currently a JSON string.
func TidyPubChemProperties(p PubChemProperties) CompoundRecord {
	smiles := p.CanonicalSMILES
	if smiles == nil {
		smiles = p.ConnectivitySMILES
	}
	if smiles == nil {
		smiles = p.SMILES
	}

	return CompoundRecord{
		CID:              p.CID,
		IUPACName:        orNotAvailable(p.IUPACName),
		MolecularFormula: orNotAvailable(p.MolecularFormula),
		MolecularWeight:  p.MolecularWeight,
		ExactMass:        p.ExactMass,
		CanonicalSMILES:  orNotAvailable(smiles),
		InChI:            orNotAvailable(p.InChI),
		InChIKey:         orNotAvailable(p.InChIKey),
		XLogP3:           p.XLogP,
		TPSA:             p.TPSA,
		HBDonors:         p.HBondDonorCount,
		HBAcceptors:      p.HBondAcceptorCount,
		RotatableBonds:   p.RotatableBondCount,
		HeavyAtoms:       p.HeavyAtomCount,
		Charge:           p.Charge,
		Complexity:       p.Complexity,
	}
}

func orNotAvailable(s *string) string {
	if s == nil {
		return NotAvailable
	}
	return *s
}
