package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/helpers"
	"github.com/Hanishchow/Biocore-agent/internal/logging"
	"github.com/Hanishchow/Biocore-agent/internal/metrics"
	"github.com/Hanishchow/Biocore-agent/internal/parsing"
)

const slugLength = 14

type CompoundFetcher interface {
	FetchCompound(ctx context.Context, query parsing.CompoundQuery) parsing.Lookup[parsing.CompoundRecord]
}

type StructureFetcher interface {
	FetchStructure(ctx context.Context, pdbID string) parsing.Lookup[parsing.StructureRecord]
}

type Completer interface {
	Complete(ctx context.Context, payload parsing.AnalysisPayload) (string, error)
}

// Archiver keeps a finished report somewhere outside the process.
type Archiver interface {
	Name() string
	Archive(ctx context.Context, report Report) error
}

// Report is the unit handed to archivers after a successful completion.
type Report struct {
	Slug            string
	CompoundQueried string
	PDBID           string
	Model           string
	Payload         string
	Text            string
	CreatedAt       time.Time
}

type Meta struct {
	CompoundQueried any    `json:"compound_queried"`
	PDBIDQueried    string `json:"pdb_id_queried"`
	ModelUsed       string `json:"model_used"`
	ReportID        string `json:"report_id,omitempty"`
}

type Response struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
	Report string `json:"report"`
}

// Pipeline runs one analysis start to finish. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	compounds  CompoundFetcher
	structures StructureFetcher
	completer  Completer
	archivers  []Archiver
	model      string
	apiKeySet  bool
	log        *zap.Logger
}

func NewPipeline(cfg config.CompletionConfig, compounds CompoundFetcher, structures StructureFetcher, completer Completer, log *zap.Logger, archivers ...Archiver) *Pipeline {
	return &Pipeline{
		compounds:  compounds,
		structures: structures,
		completer:  completer,
		archivers:  archivers,
		model:      cfg.Model,
		apiKeySet:  cfg.APIKeySet(),
		log:        log.Named("analysis"),
	}
}

func (p *Pipeline) Model() string {
	return p.model
}

func (p *Pipeline) APIKeySet() bool {
	return p.apiKeySet
}

// Run validates req, looks up the compound and then the structure, merges
// both with the caller's documents and asks the completion service for the
// report. Lookup failures travel inside the payload; only validation,
// configuration and completion failures are returned as errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	log := logging.FromContext(ctx, p.log)

	v, err := req.validate()
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !p.apiKeySet {
		metrics.AnalysesTotal.WithLabelValues("rejected").Inc()
		return nil, &ConfigError{Message: msgNoAPIKey}
	}

	log.Info("starting analysis", zap.Any("compound", v.queried), zap.String("pdb_id", v.pdbID))

	compound := p.compounds.FetchCompound(ctx, v.query)
	metrics.LookupsTotal.WithLabelValues("pubchem", metrics.Outcome(compound.OK())).Inc()

	target := p.structures.FetchStructure(ctx, v.pdbID)
	metrics.LookupsTotal.WithLabelValues("rcsb", metrics.Outcome(target.OK())).Inc()

	payload := parsing.CreateAnalysisPayload(compound, target,
		req.DockingResults, req.SwissDockResults, req.PyMOLData)

	text, err := p.completer.Complete(ctx, payload)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		log.Error("analysis failed", zap.String("pdb_id", v.pdbID), zap.Error(err))
		return nil, err
	}
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()

	resp := &Response{
		Status: "success",
		Meta: Meta{
			CompoundQueried: v.queried,
			PDBIDQueried:    v.pdbID,
			ModelUsed:       p.model,
		},
		Report: text,
	}
	resp.Meta.ReportID = p.archive(ctx, log, v, payload, text)

	log.Info("analysis complete", zap.String("pdb_id", v.pdbID), zap.String("report_id", resp.Meta.ReportID))
	return resp, nil
}

// archive hands the report to every archiver and returns its slug when at
// least one of them kept it.
func (p *Pipeline) archive(ctx context.Context, log *zap.Logger, v validated, payload parsing.AnalysisPayload, text string) string {
	if len(p.archivers) == 0 {
		return ""
	}

	slug, err := helpers.GenerateRandomString(slugLength)
	if err != nil {
		log.Error("could not generate report slug", zap.Error(err))
		return ""
	}
	payloadJSON, err := payload.IndentJSON()
	if err != nil {
		log.Error("could not render payload for archiving", zap.Error(err))
		return ""
	}

	report := Report{
		Slug:            slug,
		CompoundQueried: v.queriedString(),
		PDBID:           v.pdbID,
		Model:           p.model,
		Payload:         payloadJSON,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
	}

	kept := false
	for _, a := range p.archivers {
		if err := a.Archive(ctx, report); err != nil {
			metrics.ArchiveFailures.WithLabelValues(a.Name()).Inc()
			log.Warn("failed to archive report", zap.String("archive", a.Name()), zap.String("slug", slug), zap.Error(err))
			continue
		}
		kept = true
	}
	if !kept {
		return ""
	}
	return slug
}
