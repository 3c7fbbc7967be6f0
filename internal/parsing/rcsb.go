package parsing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
)

const (
	ResolutionUnknown   = "unknown"
	ResolutionExcellent = "excellent (< 2.0 Å)"
	ResolutionGood      = "good (2.0–2.5 Å)"
	ResolutionModerate  = "moderate (2.5–3.0 Å)"
	ResolutionLimited   = "limited (> 3.0 Å)"
)

// CrudeEntryResponse is the subset of an RCSB core entry document we read.
type CrudeEntryResponse struct {
	Struct *struct {
		Title *string `json:"title"`
	} `json:"struct"`
	EntryInfo struct {
		ResolutionCombined    []float64 `json:"resolution_combined"`
		ExperimentalMethod    *string   `json:"experimental_method"`
		PolymerEntityCount    *int      `json:"polymer_entity_count"`
		NonPolymerEntityCount *int      `json:"nonpolymer_entity_count"`
		DepositedAtomCount    *int      `json:"deposited_atom_count"`
	} `json:"rcsb_entry_info"`
	Exptl []struct {
		Method *string `json:"method"`
	} `json:"exptl"`
	Refine []struct {
		HighResolution *float64 `json:"ls_d_res_high"`
		RFree          *float64 `json:"ls_rfactor_rfree"`
		RWork          *float64 `json:"ls_rfactor_rwork"`
	} `json:"refine"`
}

// CrudeEntityResponse is the subset of the first polymer entity document we read.
type CrudeEntityResponse struct {
	PolymerEntity struct {
		Description *string `json:"pdbx_description"`
	} `json:"rcsb_polymer_entity"`
	ContainerIdentifiers struct {
		UniProtIDs []string `json:"uniprot_ids"`
	} `json:"rcsb_entity_container_identifiers"`
}

type RCSBClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewRCSBClient(cfg config.LookupConfig, log *zap.Logger) *RCSBClient {
	return &RCSBClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.Named("rcsb"),
	}
}

// FetchStructure reads the entry and its first polymer entity. The entity
// document is optional; only the entry decides between a record and a
// failed lookup.
func (c *RCSBClient) FetchStructure(ctx context.Context, pdbID string) Lookup[StructureRecord] {
	c.log.Info("fetching structure", zap.String("pdb_id", pdbID))

	var entry CrudeEntryResponse
	if _, err := c.getJSON(ctx, fmt.Sprintf("%s/core/entry/%s", c.baseURL, url.PathEscape(pdbID)), &entry); err != nil {
		c.log.Warn("structure lookup failed", zap.String("pdb_id", pdbID), zap.Error(err))
		return Failed[StructureRecord]("PDB fetch failed: %v", err)
	}

	var entity CrudeEntityResponse
	status, err := c.getJSON(ctx, fmt.Sprintf("%s/core/polymer_entity/%s/1", c.baseURL, url.PathEscape(pdbID)), &entity)
	if err != nil || status != http.StatusOK {
		c.log.Warn("polymer entity unavailable, continuing without it",
			zap.String("pdb_id", pdbID), zap.Int("status", status), zap.Error(err))
		entity = CrudeEntityResponse{}
	}

	if entry.Struct == nil {
		c.log.Warn("no PDB entry found", zap.String("pdb_id", pdbID))
		return Failed[StructureRecord]("No PDB data found for ID: %s", pdbID)
	}

	return Found(TidyStructure(pdbID, &entry, &entity))
}

// getJSON decodes the body into out regardless of status and returns the status.
func (c *RCSBClient) getJSON(ctx context.Context, u string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Debug("error closing RCSB response body", zap.Error(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// TidyStructure maps an entry and its (possibly empty) entity onto a StructureRecord.
func TidyStructure(pdbID string, entry *CrudeEntryResponse, entity *CrudeEntityResponse) StructureRecord {
	info := entry.EntryInfo

	title := NotAvailable
	if entry.Struct != nil && entry.Struct.Title != nil {
		title = *entry.Struct.Title
	}

	proteinName := title
	if d := entity.PolymerEntity.Description; d != nil && *d != "" {
		proteinName = *d
	}

	method := NotAvailable
	if len(entry.Exptl) > 0 && entry.Exptl[0].Method != nil {
		method = *entry.Exptl[0].Method
	} else if info.ExperimentalMethod != nil {
		method = *info.ExperimentalMethod
	}

	var highRes, rFree, rWork *float64
	if len(entry.Refine) > 0 {
		highRes = entry.Refine[0].HighResolution
		rFree = entry.Refine[0].RFree
		rWork = entry.Refine[0].RWork
	}

	resolution := highRes
	if len(info.ResolutionCombined) > 0 {
		r := info.ResolutionCombined[0]
		resolution = &r
	}

	nonPolymer := 0
	if info.NonPolymerEntityCount != nil {
		nonPolymer = *info.NonPolymerEntityCount
	}

	uniprot := entity.ContainerIdentifiers.UniProtIDs
	if uniprot == nil {
		uniprot = []string{}
	}

	return StructureRecord{
		PDBID:              pdbID,
		Title:              title,
		ProteinName:        proteinName,
		ExperimentalMethod: method,
		Resolution:         resolution,
		ResolutionQuality:  ClassifyResolution(resolution),
		RFree:              rFree,
		RWork:              rWork,
		PolymerChains:      info.PolymerEntityCount,
		NonPolymerCount:    nonPolymer,
		HasLigand:          HasLigand(info.NonPolymerEntityCount),
		DepositedAtoms:     info.DepositedAtomCount,
		UniProtIDs:         uniprot,
	}
}

// ClassifyResolution buckets a crystallographic resolution in Å; lower is better.
func ClassifyResolution(resolution *float64) string {
	switch {
	case resolution == nil:
		return ResolutionUnknown
	case *resolution < 2.0:
		return ResolutionExcellent
	case *resolution < 2.5:
		return ResolutionGood
	case *resolution < 3.0:
		return ResolutionModerate
	default:
		return ResolutionLimited
	}
}

func HasLigand(nonPolymerCount *int) bool {
	return nonPolymerCount != nil && *nonPolymerCount > 0
}
