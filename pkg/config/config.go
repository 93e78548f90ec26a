package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xhad/company-agent/internal/models"
)

type Config struct {
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model"`
		APIKey      string        `yaml:"-"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	API struct {
		DomainURL    string        `yaml:"domain_url"`
		KnowledgeURL string        `yaml:"knowledge_url"`
		CrawlURL     string        `yaml:"crawl_url"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Output struct {
		IncludeFields []string `yaml:"include_fields"`
	} `yaml:"output"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	// Database is optional; when URL is set finished transcripts are archived.
	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// temperatureSet is true when the file or environment gave a temperature;
	// 0 is a valid value and must not be replaced by the default.
	temperatureSet bool
	// modelDefaulted and baseURLDefaulted mark values filled in for the
	// provider, so SetProvider can swap them for the new provider's.
	modelDefaulted   bool
	baseURLDefaulted bool
}

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOllamaModel   = "mistral"
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultTemperature   = 0.1
)

// LoadConfig reads the yaml file at path, or the first file found in the
// default locations, then applies .env, the environment and defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/company-agent/config.yaml"),
			"/etc/company-agent/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	var present struct {
		LLM struct {
			Temperature *float64 `yaml:"temperature"`
		} `yaml:"llm"`
	}
	if err := yaml.Unmarshal(data, &present); err == nil && present.LLM.Temperature != nil {
		config.temperatureSet = true
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	applyProviderDefaults(config)
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if !config.temperatureSet {
		config.LLM.Temperature = defaultTemperature
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 30 * time.Second
	}

	if config.API.Timeout == 0 {
		config.API.Timeout = 15 * time.Second
	}

	if len(config.Output.IncludeFields) == 0 {
		for _, f := range models.DefaultFields {
			config.Output.IncludeFields = append(config.Output.IncludeFields, string(f))
		}
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Database.URL != "" && config.Database.TableName == "" {
		config.Database.TableName = "transcripts"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

func applyProviderDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = defaultOpenAIModel
		if config.LLM.Provider == "ollama" {
			config.LLM.Model = defaultOllamaModel
		}
		config.modelDefaulted = true
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = defaultOllamaBaseURL
		}
		config.baseURLDefaulted = true
	}
}

// SetProvider switches the LLM provider after loading. A model or base URL
// that was only a default for the previous provider is re-derived.
func (c *Config) SetProvider(provider string) {
	c.LLM.Provider = strings.ToLower(provider)
	if c.modelDefaulted {
		c.LLM.Model = ""
	}
	if c.baseURLDefaulted {
		c.LLM.BaseURL = ""
		c.baseURLDefaulted = false
	}
	applyProviderDefaults(c)
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = baseURL
	}
	if temp := os.Getenv("LLM_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			config.LLM.Temperature = v
			config.temperatureSet = true
		}
	}
	if domainURL := os.Getenv("DOMAIN_API_URL"); domainURL != "" {
		config.API.DomainURL = domainURL
	}
	if knowledgeURL := os.Getenv("KNOWLEDGE_API_URL"); knowledgeURL != "" {
		config.API.KnowledgeURL = knowledgeURL
	}
	if crawlURL := os.Getenv("CRAWL_API_URL"); crawlURL != "" {
		config.API.CrawlURL = crawlURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = strings.ToLower(level)
	}
}

// Fields returns the configured output fields as a set. Unknown names are
// reported by Validate.
func (c *Config) Fields() models.FieldSet {
	set, err := models.ParseFields(c.Output.IncludeFields)
	if err != nil {
		return models.NewFieldSet(models.DefaultFields...)
	}
	return set
}
