package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"tweetcrawl/pkg/config"
	"tweetcrawl/pkg/imagesearch"
	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/ui"
)

var (
	searchEmbedderURL string
	searchModel       string
	searchTopK        int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a folder of images by text",
	Long: `Search embeds every image of a folder through an embedding service and
ranks the images against a text query.

Embeddings are cached in embeddings.json inside the folder; only images not
yet in the cache are sent to the service. The service must expose
POST /embed/image and POST /embed/text returning {"embedding": [...]}.`,
}

var searchIndexCmd = &cobra.Command{
	Use:     "index <image-dir>",
	Short:   "Embed new images and refresh the cache",
	Example: `  tweetcrawl search index ./media`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSearchIndex,
}

var searchQueryCmd = &cobra.Command{
	Use:   "query <image-dir> <text>",
	Short: "Print the images closest to a text query",
	Example: `  tweetcrawl search query ./media "a cat on a keyboard"
  tweetcrawl search query ./media "sunset" --top-k 3`,
	Args: cobra.ExactArgs(2),
	RunE: runSearchQuery,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchIndexCmd)
	searchCmd.AddCommand(searchQueryCmd)

	searchCmd.PersistentFlags().StringVar(&searchEmbedderURL, "embedder-url", "", "embedding service URL")
	searchCmd.PersistentFlags().StringVar(&searchModel, "model", "", "embedding model name")
	searchQueryCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
}

func searchConfig() (*config.Config, logger.Logger, error) {
	cfg, log, err := loadConfig(map[string]interface{}{
		"embedder-url": searchEmbedderURL,
		"top-k":        searchTopK,
	})
	if err != nil {
		return nil, nil, err
	}
	if searchModel != "" {
		cfg.Search.Model = searchModel
	}
	return cfg, log, nil
}

// indexFolder refreshes the cache of dir, showing a spinner unless quiet
func indexFolder(cmd *cobra.Command, cfg *config.Config, log logger.Logger, dir string) (*imagesearch.Cache, imagesearch.Embedder, error) {
	embedder := imagesearch.NewHTTPEmbedder(cfg.Search.EmbedderURL, cfg.Search.Model, cfg.Search.Timeout, log)

	opts := imagesearch.IndexOptions{Model: embedder.Model()}
	if !quiet {
		s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " indexing " + filepath.Base(dir)
		s.Start()
		defer s.Stop()
		opts.Progress = func(done, total int) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" indexing %d/%d", done, total)
			s.Unlock()
		}
	}

	cache, err := imagesearch.Index(cmd.Context(), dir, embedder, opts, log)
	if err != nil {
		return nil, nil, err
	}
	return cache, embedder, nil
}

func runSearchIndex(cmd *cobra.Command, args []string) error {
	cfg, log, err := searchConfig()
	if err != nil {
		return err
	}

	cache, _, err := indexFolder(cmd, cfg, log, args[0])
	if err != nil {
		return err
	}
	ui.NewPrinter(nil).Success(fmt.Sprintf("Indexed %d images with %s", len(cache.Entries), cache.Model))
	return nil
}

func runSearchQuery(cmd *cobra.Command, args []string) error {
	cfg, log, err := searchConfig()
	if err != nil {
		return err
	}

	cache, embedder, err := indexFolder(cmd, cfg, log, args[0])
	if err != nil {
		return err
	}

	results, err := imagesearch.Query(cmd.Context(), embedder, cache, args[1], cfg.Search.TopK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		ui.NewPrinter(nil).Warning("No images in " + args[0])
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. %s  %s\n", i+1, ui.Yellow(fmt.Sprintf("%.3f", r.Score)), r.Path)
	}
	return nil
}
