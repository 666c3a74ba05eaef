package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Registry Errors (E001-E019)
	// ============================================

	"E001": {
		Category: CategoryRegistry,
		Message:  "Dataset label already registered",
		Detail:   "A dataset with this label already exists in the manifest. Labels are case-sensitive and must be unique.",
		DocURL:   "https://refdex.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryRegistry,
		Message:  "Dataset label not found",
		Detail:   "No dataset with this label exists in the manifest.",
		DocURL:   "https://refdex.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryRegistry,
		Message:  "Dataset has no files",
		Detail:   "A dataset must contain at least one file entry. Registration without any URL is not allowed.",
		DocURL:   "https://refdex.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategoryRegistry,
		Message:  "Annotation file requires a sequence file",
		Detail:   "GFF, GTF, and BED files describe positions on a sequence. Register them together with a FASTA or GenBank entry.",
		DocURL:   "https://refdex.dev/docs/errors/E004",
	},
	"E005": {
		Category: CategoryRegistry,
		Message:  "Unknown file kind",
		Detail:   "The file kind is not one of the recognized kinds (fasta, genbank, gfa, gff, gtf, bed).",
		DocURL:   "https://refdex.dev/docs/errors/E005",
	},

	// ============================================
	// Manifest Errors (E020-E039)
	// ============================================

	"E020": {
		Category: CategoryManifest,
		Message:  "Manifest not found",
		Detail:   "No refdex.toml exists at the resolved path.",
		DocURL:   "https://refdex.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryManifest,
		Message:  "Manifest is corrupt",
		Detail:   "The manifest file exists but could not be parsed, or its contents violate a structural invariant.",
		DocURL:   "https://refdex.dev/docs/errors/E021",
	},
	"E022": {
		Category: CategoryManifest,
		Message:  "Manifest already exists",
		Detail:   "A manifest is already present at the target path. init never overwrites an existing registry.",
		DocURL:   "https://refdex.dev/docs/errors/E022",
	},

	// ============================================
	// Validation Errors (E040-E059)
	// ============================================

	"E040": {
		Category: CategoryValidation,
		Message:  "URL is malformed",
		Detail:   "The URL could not be parsed as an absolute http or https URL.",
		DocURL:   "https://refdex.dev/docs/errors/E040",
	},
	"E041": {
		Category: CategoryValidation,
		Message:  "URL is not reachable",
		Detail:   "The server answered the reachability probe with an error status, or the host could not be resolved.",
		DocURL:   "https://refdex.dev/docs/errors/E041",
	},
	"E042": {
		Category: CategoryNetwork,
		Message:  "Network error persisted after retries",
		Detail:   "A transient network failure (timeout, connection reset) did not clear within the retry budget.",
		DocURL:   "https://refdex.dev/docs/errors/E042",
	},

	// ============================================
	// Download Errors (E060-E079)
	// ============================================

	"E060": {
		Category: CategoryDownload,
		Message:  "Download failed",
		Detail:   "The file could not be fetched: the server returned an error status or the transfer was interrupted.",
		DocURL:   "https://refdex.dev/docs/errors/E060",
	},

	// ============================================
	// Filesystem Errors (E080-E099)
	// ============================================

	"E080": {
		Category: CategoryFilesystem,
		Message:  "Filesystem operation failed",
		Detail:   "A local file or directory could not be created, written, or renamed.",
		DocURL:   "https://refdex.dev/docs/errors/E080",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
