package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for posts.
//
// Free text uses the CJK analyzer, which splits Japanese into bigrams so a
// query matches inside words without a dictionary. Genre and tags are
// keywords and only match exactly.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = cjk.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Title is the primary target and is highlighted.
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = cjk.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	catchcopyFieldMapping := bleve.NewTextFieldMapping()
	catchcopyFieldMapping.Analyzer = cjk.AnalyzerName
	catchcopyFieldMapping.Store = true
	catchcopyFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("catchcopy", catchcopyFieldMapping)

	// Body is searchable but not stored.
	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Analyzer = cjk.AnalyzerName
	bodyFieldMapping.Store = false
	bodyFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("body", bodyFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = cjk.AnalyzerName
	authorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	// --- Keyword fields ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	authorIDFieldMapping := bleve.NewTextFieldMapping()
	authorIDFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("author_id", authorIDFieldMapping)

	genreFieldMapping := bleve.NewTextFieldMapping()
	genreFieldMapping.Analyzer = keyword.Name
	genreFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("genre", genreFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Numeric fields (sorting) ---

	likeCountFieldMapping := bleve.NewNumericFieldMapping()
	likeCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("like_count", likeCountFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
