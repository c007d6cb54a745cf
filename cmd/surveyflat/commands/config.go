package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"surveyflat/lib/configutil"
	"surveyflat/lib/restyutil"
	"surveyflat/lib/surveymonkey"
	"surveyflat/lib/tableio"
	"time"
)

const credentialsFile = "credentials.json5"

// Config is the contents of credentials.json5.
type Config struct {
	// registered app credentials, the bulk api only needs the access token
	ClientId    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`

	BaseUrl        string `json:"base_url"`
	PerPage        int    `json:"per_page"`
	MaxPages       int    `json:"max_pages"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	S3       tableio.S3Config       `json:"s3"`
	Database tableio.DatabaseConfig `json:"database"`
}

func loadConfig(path string) (Config, error) {
	if path != "" {
		cfg, err := configutil.ReadConfig[Config](path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := configutil.ReadRecursively[Config](credentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("could not find %s in this directory or any parent: %w", credentialsFile, err)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", credentialsFile, err)
	}
	return cfg, nil
}

func (c Config) clientOptions(maxPages int, dumpDir string) (surveymonkey.ClientOptions, error) {
	if c.AccessToken == "" {
		return surveymonkey.ClientOptions{}, fmt.Errorf("access_token is not set in the credentials")
	}
	opts := surveymonkey.ClientOptions{
		BaseUrl:     c.BaseUrl,
		AccessToken: c.AccessToken,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
		PerPage:     c.PerPage,
		MaxPages:    c.MaxPages,
	}
	if maxPages > 0 {
		opts.MaxPages = maxPages
	}
	if dumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			return surveymonkey.ClientOptions{}, err
		}
		opts.InstrumentOutput = output
		slog.Debug("dumping http messages", "dir", dumpDir)
	}
	return opts, nil
}

func newClient(maxPages int) (*surveymonkey.Client, Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, Config{}, err
	}
	opts, err := cfg.clientOptions(maxPages, dumpHttpDir)
	if err != nil {
		return nil, Config{}, err
	}
	client, err := surveymonkey.NewClient(opts)
	if err != nil {
		return nil, Config{}, err
	}
	return client, cfg, nil
}
