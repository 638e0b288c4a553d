package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// User
	userID string

	// Repository: local chromem database by default, Firestore when a
	// project is configured.
	dbPath   string
	project  string
	database string

	// Adapters
	anthropicAPIKey string
	geminiProject   string
	geminiLocation  string
	embeddingDims   int64
	bucket          string
	onnxModel       string
	onnxTokenizer   string
	onnxLibrary     string

	// Misc
	logLevel   string
	configPath string
}

// fileConfig mirrors the optional YAML configuration file. Flags and
// environment variables take precedence over file values.
type fileConfig struct {
	UserID          string `yaml:"user_id"`
	DBPath          string `yaml:"db_path"`
	Project         string `yaml:"project"`
	Database        string `yaml:"database"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiProject   string `yaml:"gemini_project"`
	GeminiLocation  string `yaml:"gemini_location"`
	EmbeddingDims   int64  `yaml:"embedding_dimensions"`
	Bucket          string `yaml:"bucket"`
	ONNXModel       string `yaml:"onnx_model"`
	ONNXTokenizer   string `yaml:"onnx_tokenizer"`
	ONNXLibrary     string `yaml:"onnx_library"`
	LogLevel        string `yaml:"log_level"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User whose memories are accessed",
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "Path to the local memory database (empty for in-memory)",
			Value:       "./recall.db",
			Sources:     cli.EnvVars("RECALL_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID (enables Firestore storage)",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding vector size",
			Value:       768,
			Sources:     cli.EnvVars("RECALL_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDims,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("RECALL_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML configuration file",
			Sources:     cli.EnvVars("RECALL_CONFIG"),
			Destination: &cfg.configPath,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for transcript archives",
			Sources:     cli.EnvVars("RECALL_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "onnx-model",
			Usage:       "Path to a local ONNX embedding model, used instead of Gemini embeddings when set. embedding-dimensions must match the model (384 for all-MiniLM-L6-v2)",
			Sources:     cli.EnvVars("RECALL_ONNX_MODEL"),
			Destination: &cfg.onnxModel,
		},
		&cli.StringFlag{
			Name:        "onnx-tokenizer",
			Usage:       "Path to the ONNX model's tokenizer.json",
			Sources:     cli.EnvVars("RECALL_ONNX_TOKENIZER"),
			Destination: &cfg.onnxTokenizer,
		},
		&cli.StringFlag{
			Name:        "onnx-library",
			Usage:       "Path to the onnxruntime shared library",
			Sources:     cli.EnvVars("RECALL_ONNX_LIBRARY"),
			Destination: &cfg.onnxLibrary,
		},
	}
}

// setup applies the optional config file and installs the logger in the
// context. Called at the top of every command action.
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if cfg.configPath != "" {
		if err := cfg.loadFile(cfg.configPath, c.IsSet); err != nil {
			return ctx, err
		}
	}
	if cfg.userID == "" {
		return ctx, goerr.New("user-id is required")
	}

	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// loadFile fills fields from the YAML file unless the corresponding
// flag was set explicitly (via command line or environment variable).
// Set-ness comes from the flag parser, so a flag set to its default
// value still wins over the file.
func (cfg *config) loadFile(path string, isSet func(string) bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	if fc.UserID != "" && !isSet("user-id") {
		cfg.userID = fc.UserID
	}
	if fc.DBPath != "" && !isSet("db-path") {
		cfg.dbPath = fc.DBPath
	}
	if fc.Project != "" && !isSet("project") {
		cfg.project = fc.Project
	}
	if fc.Database != "" && !isSet("database") {
		cfg.database = fc.Database
	}
	if fc.AnthropicAPIKey != "" && !isSet("anthropic-api-key") {
		cfg.anthropicAPIKey = fc.AnthropicAPIKey
	}
	if fc.GeminiProject != "" && !isSet("gemini-project") {
		cfg.geminiProject = fc.GeminiProject
	}
	if fc.GeminiLocation != "" && !isSet("gemini-location") {
		cfg.geminiLocation = fc.GeminiLocation
	}
	if fc.EmbeddingDims != 0 && !isSet("embedding-dimensions") {
		cfg.embeddingDims = fc.EmbeddingDims
	}
	if fc.Bucket != "" && !isSet("bucket") {
		cfg.bucket = fc.Bucket
	}
	if fc.ONNXModel != "" && !isSet("onnx-model") {
		cfg.onnxModel = fc.ONNXModel
	}
	if fc.ONNXTokenizer != "" && !isSet("onnx-tokenizer") {
		cfg.onnxTokenizer = fc.ONNXTokenizer
	}
	if fc.ONNXLibrary != "" && !isSet("onnx-library") {
		cfg.onnxLibrary = fc.ONNXLibrary
	}
	if fc.LogLevel != "" && !isSet("log-level") {
		cfg.logLevel = fc.LogLevel
	}

	return nil
}

// newRepository creates the vector store: Firestore when a project is
// configured, otherwise a local chromem database.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.project != "" {
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore repository")
		}
		return repo, nil
	}

	repo, err := repository.NewChromem(cfg.dbPath, int(cfg.embeddingDims))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create local repository")
	}
	return repo, nil
}

// newGemini creates a Gemini adapter, or nil when not configured. The
// memory pipeline degrades to offline implementations without it.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, nil
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithEmbeddingDimensions(int32(cfg.embeddingDims)))
}

// newEmbedder returns the embedding backend: the local ONNX model when
// one is configured, a cached Gemini embedder when Gemini is available,
// and the deterministic hash embedder otherwise.
func (cfg *config) newEmbedder(gemini adapter.Gemini) (adapter.Embedder, error) {
	if cfg.onnxModel != "" {
		embedder, err := adapter.NewONNXEmbedder(adapter.ONNXConfig{
			ModelPath:     cfg.onnxModel,
			TokenizerPath: cfg.onnxTokenizer,
			LibraryPath:   cfg.onnxLibrary,
			Dimensions:    int(cfg.embeddingDims),
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load local embedding model",
				goerr.V("model", cfg.onnxModel))
		}
		return adapter.NewCachedEmbedder(embedder, 4096)
	}

	if gemini == nil {
		return adapter.NewHashEmbedder(int(cfg.embeddingDims)), nil
	}

	embedder := adapter.NewGeminiEmbedder(gemini, int(cfg.embeddingDims))
	cached, err := adapter.NewCachedEmbedder(embedder, 4096)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// newMemoryUseCase wires the full memory pipeline from configuration.
func (cfg *config) newMemoryUseCase(ctx context.Context) (*memory.UseCase, repository.Repository, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder(gemini)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	var (
		oracle     memory.Oracle
		extractor  memory.Extractor
		summarizer memory.Summarizer
	)
	if gemini != nil {
		if oracle, err = memory.NewGeminiOracle(gemini); err != nil {
			repo.Close()
			return nil, nil, err
		}
		if extractor, err = memory.NewGeminiExtractor(gemini); err != nil {
			repo.Close()
			return nil, nil, err
		}
		summarizer = memory.NewGeminiSummarizer(gemini)
	} else {
		oracle = memory.NewRuleOracle()
		extractor = memory.NewLocalExtractor()
		summarizer = memory.NewLocalSummarizer()
	}

	uc := memory.New(
		repository.NewLedger(repo),
		embedder,
		oracle,
		extractor,
		memory.WithSummarizer(summarizer),
	)
	return uc, repo, nil
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (adapter.Claude, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}
	return adapter.NewClaude(cfg.anthropicAPIKey), nil
}

// newStorage creates a transcript archive, or nil when no bucket is set.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}
	return adapter.NewStorage(ctx, cfg.bucket)
}
