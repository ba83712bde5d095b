package config

import "time"

// The yaml* types mirror the sources file. Numeric and boolean knobs are pointers so an
// explicit 0 or false in a source is told apart from "not set" and survives the defaults merge.

type yamlSiteConfig struct {
	Defaults yamlSource   `yaml:"defaults"`
	Sources  []yamlSource `yaml:"sources"`
}

type yamlSource struct {
	Name      string        `yaml:"name"`
	URL       string        `yaml:"url"`
	Fetcher   string        `yaml:"fetcher"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Table     yamlTable     `yaml:"table"`
	Columns   yamlColumns   `yaml:"columns"`
	Output    string        `yaml:"output"`
	Indent    *int          `yaml:"indent"`
	ASCIIOnly *bool         `yaml:"ascii_only"`
	Message   string        `yaml:"message"`
}

type yamlTable struct {
	Selector   string `yaml:"selector"`
	Position   string `yaml:"position"`
	Body       string `yaml:"body"`
	Row        string `yaml:"row"`
	Cell       string `yaml:"cell"`
	HeaderRows *int   `yaml:"header_rows"`
}

type yamlColumns struct {
	Key   *int `yaml:"key"`
	Value *int `yaml:"value"`
}
