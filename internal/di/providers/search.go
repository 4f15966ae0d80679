package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/search"
	"github.com/arasuji/arasuji-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// Index is nil when search is disabled.
type SearchIndexHandle struct {
	Index *search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Index.Close()
}

// indexer returns the index as a PostIndexer, or an untyped nil when disabled.
func (h *SearchIndexHandle) indexer() service.PostIndexer {
	if h.Index == nil {
		return nil
	}
	return h.Index
}

// searcher returns the index as a PostSearcher, or an untyped nil when disabled.
func (h *SearchIndexHandle) searcher() service.PostSearcher {
	if h.Index == nil {
		return nil
	}
	return h.Index
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Store.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	postService := do.MustInvoke[*service.PostService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.searcher(), postService, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the store in the background.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if indexHandle.Index == nil {
		return
	}
	postService := do.MustInvoke[*service.PostService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.Index.DocumentCount()
	if docCount > 0 {
		return
	}

	go func() {
		n, err := postService.Reindex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "indexed", n, "error", err)
			return
		}
		if n > 0 {
			log.Info("Initial search reindex completed", "documents", n)
		}
	}()
}
