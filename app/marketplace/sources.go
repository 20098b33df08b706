package marketplace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources is the categories.yml file: the upstream categories to poll plus
// feed-level metadata overrides for the generated documents.
type Sources struct {
	Categories []string `yaml:"categories"`
	Feed       struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Link        string `yaml:"link"`
	} `yaml:"feed"`
}

func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if len(sources.Categories) == 0 {
		return nil, fmt.Errorf("sources file %s lists no categories", path)
	}
	if sources.Feed.Title == "" {
		sources.Feed.Title = "Deals"
	}
	if sources.Feed.Link == "" {
		sources.Feed.Link = "https://www.woot.com/"
	}
	if sources.Feed.Description == "" {
		sources.Feed.Description = "Latest deals from the marketplace"
	}

	return &sources, nil
}
