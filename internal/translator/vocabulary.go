package translator

import (
	"sort"
	"strings"

	"ncats/chp/internal/config"
)

// Vocabulary maps accepted curies to hypergraph feature names. Genes map to
// gene symbols, drugs to drug names, phenotypes to outcome property names.
type Vocabulary struct {
	Diseases   map[string]string
	Phenotypes map[string]string
	Genes      map[string]string
	Drugs      map[string]string
}

// DefaultVocabulary returns the built-in curie set
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Diseases:   map[string]string{"MONDO:0007254": "Breast_Cancer"},
		Phenotypes: map[string]string{"EFO:0000714": "Survival_Time"},
		Genes: map[string]string{
			"ENSEMBL:ENSG00000132155": "RAF1",
			"ENSEMBL:ENSG00000012048": "BRCA1",
		},
		Drugs: map[string]string{"CHEMBL:CHEMBL88": "CYCLOPHOSPHAMIDE"},
	}
}

// VocabularyFromConfig layers configured mappings over the defaults
func VocabularyFromConfig(c config.VocabularyConfig) Vocabulary {
	v := DefaultVocabulary()
	merge(v.Diseases, c.Diseases)
	merge(v.Phenotypes, c.Phenotypes)
	merge(v.Genes, c.Genes)
	merge(v.Drugs, c.Drugs)
	return v
}

func merge(dst, src map[string]string) {
	for k, val := range src {
		dst[k] = val
	}
}

// curies renders the accepted curies of m as a comma-separated list
func curies(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
