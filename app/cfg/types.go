package cfg

type Cfg struct {
	// Storage configuration
	DBPath   string
	MaxItems int

	// Upstream marketplace configuration
	MarketplaceURL string
	MarketplaceKey string
	CategoriesFile string

	// Application configuration
	Port            string
	BaseUrl         string
	AccessKey       string
	RefreshInterval int
	FeedPageSize    int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
