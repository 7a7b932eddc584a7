package config

// BrowserConfig configures the Chrome instance the session drives.
type BrowserConfig struct {
	// DebuggerURL attaches to an already running Chrome instead of launching one.
	DebuggerURL    string   `yaml:"debugger_url"`
	Bin            string   `yaml:"bin"`
	Flags          []string `yaml:"flags"`
	Headless       bool     `yaml:"headless"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
}

// DefaultBrowserConfig returns a visible browser, since interactive login
// needs an operator at the window.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       false,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Flags: []string{
			"--disable-features=VizDisplayCompositor",
			"--no-sandbox",
		},
	}
}
