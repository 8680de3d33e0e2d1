package config

// OutputConfig names the artifacts written after a run, relative to Dir.
type OutputConfig struct {
	Dir           string `json:"dir"`
	CostFile      string `json:"cost_file"`
	OperationFile string `json:"operation_file"`
	JSONFile      string `json:"json_file"`
	// ChartFile is skipped when set to "-".
	ChartFile string `json:"chart_file"`
}

func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "output"
	}
	if c.CostFile == "" {
		c.CostFile = "Cost.csv"
	}
	if c.OperationFile == "" {
		c.OperationFile = "Operation.csv"
	}
	if c.JSONFile == "" {
		c.JSONFile = "schedule.json"
	}
	if c.ChartFile == "" {
		c.ChartFile = "soc_price.html"
	}
}

// ServerConfig configures the HTTP API started by "serve".
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	// MaxSteps caps the horizon accepted per request.
	MaxSteps int `json:"max_steps"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 192
	}
}
