package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         0, // no limit unless the descriptor sets one
		FollowRedirects: boolPtr(true),
		MaxRedirects:    10,
		MaxBodyBytes:    0,
		Rate:            0,
		Headers:         nil,
		Output:          "console",
		OutputFile:      "",
		Verbose:         boolPtr(false),
		NoColor:         boolPtr(false),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.MaxBodyBytes == defaults.MaxBodyBytes &&
		c.Rate == defaults.Rate &&
		len(c.Headers) == 0 &&
		c.Output == defaults.Output &&
		c.OutputFile == defaults.OutputFile &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.Log == defaults.Log &&
		c.History == defaults.History &&
		c.MetricsFile == defaults.MetricsFile &&
		c.Schedule == defaults.Schedule
}
