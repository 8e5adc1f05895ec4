package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	date    string
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDate makes the editor open the note for date instead of today's.
func WithDate(date string) Option {
	return func(a *application) {
		a.date = date
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	return app, nil
}
