package pipeline

import (
	"path"
	"strings"

	"github.com/m-p-esser/data-job-pipeline/internal/config"
)

// Layout maps search IDs to object-store keys. Raw envelopes land under
// raw/{successful|error}/, split artifacts under processed/.
type Layout struct {
	rawDir       string
	processedDir string
}

func NewLayout(cfg *config.Config) Layout {
	return Layout{
		rawDir:       cfg.RawDir,
		processedDir: cfg.ProcessedDir,
	}
}

func (l Layout) RawSuccessPrefix() string {
	return l.rawDir + "/successful/"
}

func (l Layout) RawErrorPrefix() string {
	return l.rawDir + "/error/"
}

func (l Layout) RawKey(successful bool, searchID string) string {
	status := "successful"
	if !successful {
		status = "error"
	}
	return path.Join(l.rawDir, status, "search_"+searchID+".json")
}

func (l Layout) ProcessedPrefix() string {
	return l.processedDir + "/"
}

func (l Layout) MetadataKey(searchID string) string {
	return path.Join(l.processedDir, "metadata_"+searchID+".json")
}

func (l Layout) ParametersKey(searchID string) string {
	return path.Join(l.processedDir, "parameters_"+searchID+".json")
}

func (l Layout) ResultsKey(searchID string) string {
	return path.Join(l.processedDir, "results_"+searchID+".json")
}

// SearchIDFromKey recovers the search ID from any key produced by this
// layout. Returns "" for keys that do not follow the naming scheme.
func (l Layout) SearchIDFromKey(key string) string {
	base := path.Base(key)
	base = strings.TrimSuffix(base, ".json")
	idx := strings.Index(base, "_")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return base[idx+1:]
}
