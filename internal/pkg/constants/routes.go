package constants

// Static route constants
const (
	// SubmitRoute is where founder-facing flows land on errors; the page
	// itself is rendered by the web frontend.
	SubmitRoute = "/submit"
	// StartupDetailRoute prefixes the public startup detail pages.
	StartupDetailRoute = "/startup"
	UploadsRoute       = "/uploads"
	// Upload path without leading slash for filesystem operations
	UploadsPath = "uploads"
)
