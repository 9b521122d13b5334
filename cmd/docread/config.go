package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/docread/fetch"
	"github.com/hazyhaar/docread/pipeline"
	"github.com/hazyhaar/docread/transcript"
)

// Config is the top-level docread configuration.
type Config struct {
	// Addr is the listen address, ":8080" by default.
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	TLS fetch.TLSPolicy `yaml:"tls"`

	// Render routes matching domains through a JavaScript-executing
	// browser when the direct fetch yields an HTML page.
	Render RenderConfig `yaml:"render"`

	WikiDomains      []string          `yaml:"wiki_domains"`
	DashboardDomains []string          `yaml:"dashboard_domains"`
	RootSelectors    map[string]string `yaml:"root_selectors"`

	// OCR is the markdown conversion service for PDFs; extraction of
	// PDFs and slide decks is disabled when its api_key is empty.
	OCR pipeline.OCRClient `yaml:"ocr"`

	// Whisper enables media transcription when its api_key is set.
	Whisper WhisperConfig `yaml:"whisper"`

	MaxFileSize int64 `yaml:"max_file_size"`
}

// RenderConfig selects the rendering backend and the domains opted out
// of it.
type RenderConfig struct {
	// Enabled turns on the render fallback with a local headless
	// browser. Setting ServiceURL enables it too, with the remote
	// service instead.
	Enabled bool `yaml:"enabled"`

	// DisabledDomains (matched exactly) and DisabledSuffixes (matched
	// against the tail of the hostname) never go through rendering:
	// sites that block rendering proxies, or that never need JS.
	DisabledDomains  []string `yaml:"disabled_domains"`
	DisabledSuffixes []string `yaml:"disabled_suffixes"`

	// ServiceURL points to a remote rendering service, used in place of
	// the local browser when set.
	ServiceURL string `yaml:"service_url"`
	APIKey     string `yaml:"api_key"`
	Country    string `yaml:"country"`
}

// WhisperConfig points to an OpenAI-compatible transcription endpoint.
type WhisperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// HallucinationsFile replaces the built-in hallucination tables with
	// the ones in this YAML file.
	HallucinationsFile string `yaml:"hallucinations_file"`
}

// LoadHallucinationsFile reads a YAML hallucination-tables file.
func LoadHallucinationsFile(path string) (*transcript.Hallucinations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hallucinations: %w", err)
	}
	var h transcript.Hallucinations
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse hallucinations %s: %w", path, err)
	}
	return &h, nil
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
