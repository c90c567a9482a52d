package lode

// Record kind discriminators. Also the record_kind partition value.
const (
	RecordKindCandidate = "candidate"
	RecordKindBatch     = "batch"
)

// CandidateRecord is the ledger row for one processed candidate.
type CandidateRecord struct {
	Path          string
	Name          string
	Status        string
	Decision      string
	DeclaredWidth float64
	TargetWidth   int
	SourceBytes   int64
	ArtifactBytes int64
	FilesUpdated  int
	FilesFailed   int
	Archived      bool
	Error         string
	Ts            string
}

// BatchRecord is the ledger row summarizing a batch.
type BatchRecord struct {
	Status     string
	DryRun     bool
	Candidates int
	Converted  int
	Kept       int
	Failed     int
	BytesSaved int64
	StartedAt  string
	FinishedAt string
	// Metrics is the flattened metrics snapshot.
	Metrics map[string]any
}

// Lode HiveLayout requires records as map[string]any carrying the
// partition keys as fields.
func (c Config) partitionFields(kind string) map[string]any {
	return map[string]any{
		"record_kind": kind,
		"project":     c.Project,
		"day":         c.Day,
		"run_id":      c.RunID,
	}
}

func toCandidateRecordMap(r CandidateRecord, cfg Config) map[string]any {
	m := cfg.partitionFields(RecordKindCandidate)
	m["path"] = r.Path
	m["name"] = r.Name
	m["status"] = r.Status
	m["decision"] = r.Decision
	m["declared_width"] = r.DeclaredWidth
	m["target_width"] = r.TargetWidth
	m["source_bytes"] = r.SourceBytes
	m["artifact_bytes"] = r.ArtifactBytes
	m["files_updated"] = r.FilesUpdated
	m["files_failed"] = r.FilesFailed
	m["archived"] = r.Archived
	m["ts"] = r.Ts
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}

func toBatchRecordMap(r BatchRecord, cfg Config) map[string]any {
	m := cfg.partitionFields(RecordKindBatch)
	m["status"] = r.Status
	m["dry_run"] = r.DryRun
	m["candidates"] = r.Candidates
	m["converted"] = r.Converted
	m["kept_original"] = r.Kept
	m["failed"] = r.Failed
	m["bytes_saved"] = r.BytesSaved
	m["started_at"] = r.StartedAt
	m["finished_at"] = r.FinishedAt
	if r.Metrics != nil {
		m["metrics"] = r.Metrics
	}
	return m
}
